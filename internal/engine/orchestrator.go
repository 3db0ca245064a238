package engine

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"FolioSim/internal/domain/models"
	domsvc "FolioSim/internal/domain/service"
)

// Orchestrator fans a run out across a bounded worker pool and collects the
// ensemble behind a strict barrier: aggregation never sees a partial run.
type Orchestrator struct {
	workers int
}

var _ domsvc.Simulator = (*Orchestrator)(nil)

type Option func(*Orchestrator)

// WithWorkers bounds the number of concurrently executing trials.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates the request and executes every trial to completion.
func (o *Orchestrator) Run(ctx context.Context, req *models.SimulationRequest) (*models.Ensemble, error) {
	return o.RunWithProgress(ctx, req, nil)
}

// RunWithProgress is Run with a completion callback. progress, when non-nil,
// receives monotonically increasing completed counts and may be invoked from
// multiple goroutines at once.
//
// Each trial owns a private random source seeded from the run seed plus the
// trial index, so a fixed RandomSeed reproduces every trial in a stable
// order regardless of scheduling. On cancellation no partial result is
// returned: in-flight trials are abandoned and the error reports the cause.
func (o *Orchestrator) RunWithProgress(ctx context.Context, req *models.SimulationRequest, progress func(completed, total int)) (*models.Ensemble, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.RandomSeed != nil {
		seed = *req.RandomSeed
	}

	total := req.NumSimulations
	sampleN := req.TrajectorySample
	if sampleN > total {
		sampleN = total
	}

	runner := NewTrialRunner(req)
	finals := make([]float64, total)
	sample := make([]models.Trial, sampleN)
	var withdrawals []float64
	if req.Drawdown.Enabled {
		withdrawals = make([]float64, total)
	}

	var (
		wg        sync.WaitGroup
		completed atomic.Int64
	)
	sem := make(chan struct{}, o.workers)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}

			rng := rand.New(rand.NewSource(seed + int64(idx)))
			trial := runner.Run(rng)
			finals[idx] = trial.FinalValue()
			if withdrawals != nil {
				sum := 0.0
				for _, y := range trial.Years {
					sum += y.Withdrawal
				}
				withdrawals[idx] = sum
			}
			if idx < sampleN {
				sample[idx] = trial
			}
			if progress != nil {
				progress(int(completed.Add(1)), total)
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulation aborted after %d of %d trials: %w", completed.Load(), total, err)
	}
	return &models.Ensemble{
		FinalValues:      finals,
		WithdrawalTotals: withdrawals,
		Sample:           sample,
		Seed:             seed,
	}, nil
}
