package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/engine"
)

func main() {
	root := &cobra.Command{
		Use:          "simctl",
		Short:        "Run portfolio Monte Carlo simulations from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newAssetsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		file    string
		seed    int64
		workers int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a request file and print statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				req.RandomSeed = &seed
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			sim := engine.NewOrchestrator(engine.WithWorkers(workers))
			start := time.Now()
			ens, err := sim.Run(ctx, req)
			if err != nil {
				return err
			}

			out := struct {
				Seed       int64              `json:"seed"`
				Trials     int                `json:"trials"`
				Elapsed    string             `json:"elapsed"`
				Statistics *models.Statistics `json:"statistics"`
			}{
				Seed:       ens.Seed,
				Trials:     len(ens.FinalValues),
				Elapsed:    time.Since(start).Round(time.Millisecond).String(),
				Statistics: engine.Aggregate(req, ens),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "request file (.yaml, .yml or .json)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "fixed random seed for reproducible runs")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = all CPUs)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this duration")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newAssetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "Print the default asset classes and simulation parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(models.DefaultAssets())
		},
	}
}

// loadRequest reads a simulation request from a YAML or JSON file and
// applies the same defaults the HTTP API would.
func loadRequest(path string) (*models.SimulationRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}

	req := &models.SimulationRequest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Request DTOs carry json tags only; go through an intermediate
		// map so YAML field names line up with them.
		var raw map[string]interface{}
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		jb, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		if err := json.Unmarshal(jb, req); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
	default:
		if err := json.Unmarshal(b, req); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := defaults.Set(req); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	return req, nil
}
