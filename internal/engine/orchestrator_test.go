package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

func seedPtr(v int64) *int64 { return &v }

func TestRunRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.SimulationRequest)
		expected string
	}{
		{
			name: "allocation sum off tolerance names the computed sum",
			mutate: func(r *models.SimulationRequest) {
				r.AssetClasses = []models.AssetClass{
					{Name: "A", Allocation: 0.50, MedianReturn: 0.05, MinReturn: 0.05, MaxReturn: 0.05},
					{Name: "B", Allocation: 0.45, MedianReturn: 0.05, MinReturn: 0.05, MaxReturn: 0.05},
				}
			},
			expected: "0.9500",
		},
		{
			name:     "too few simulations",
			mutate:   func(r *models.SimulationRequest) { r.NumSimulations = 4999 },
			expected: "4999",
		},
		{
			name:     "horizon above cap",
			mutate:   func(r *models.SimulationRequest) { r.TimeHorizon = 60 },
			expected: "between 1 and 50",
		},
		{
			name:     "horizon below floor",
			mutate:   func(r *models.SimulationRequest) { r.TimeHorizon = 0 },
			expected: "between 1 and 50",
		},
		{
			name:     "negative deviation",
			mutate:   func(r *models.SimulationRequest) { r.AssetClasses[0].StdDeviation = -0.1 },
			expected: "std_deviation",
		},
		{
			name: "return bound below total loss",
			mutate: func(r *models.SimulationRequest) {
				r.AssetClasses[0].MinReturn = -1.5
				r.AssetClasses[0].MedianReturn = -1.5
			},
			expected: "min_return must be >= -1",
		},
		{
			name: "inverted return bounds",
			mutate: func(r *models.SimulationRequest) {
				r.AssetClasses[0].MinReturn = 0.5
				r.AssetClasses[0].MaxReturn = -0.5
			},
			expected: "exceeds max_return",
		},
		{
			name: "confiscatory tax rate",
			mutate: func(r *models.SimulationRequest) {
				r.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 1000}
				r.TaxSettings = models.TaxSettings{AccountType: models.AccountTaxDeferred, OrdinaryIncomeTaxRate: 0.70, StateTaxRate: 0.40}
			},
			expected: "below 100%",
		},
	}

	o := NewOrchestrator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fixedRequest(0.05)
			tt.mutate(req)

			ens, err := o.Run(context.Background(), req)
			require.Error(t, err)
			require.Nil(t, ens)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "want a validation error, got %T", err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestRunAcceptsAllocationAtToleranceEdge(t *testing.T) {
	req := fixedRequest(0.05)
	req.TimeHorizon = 1
	req.AssetClasses = []models.AssetClass{
		{Name: "A", Allocation: 0.500, MedianReturn: 0.05, MinReturn: 0.05, MaxReturn: 0.05},
		{Name: "B", Allocation: 0.499, MedianReturn: 0.05, MinReturn: 0.05, MaxReturn: 0.05},
	}

	ens, err := NewOrchestrator().Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ens.FinalValues, req.NumSimulations)
}

func TestRunExactSimulationFloor(t *testing.T) {
	req := fixedRequest(0.05)
	req.TimeHorizon = 1
	req.NumSimulations = 5000

	ens, err := NewOrchestrator().Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ens.FinalValues, 5000)
}

func TestRunReproducibleUnderFixedSeed(t *testing.T) {
	build := func() *models.SimulationRequest {
		req := fixedRequest(0.07)
		req.TimeHorizon = 3
		req.RandomSeed = seedPtr(42)
		req.TrajectorySample = 20
		req.AssetClasses = []models.AssetClass{
			{Name: "Stocks", Allocation: 0.6, MedianReturn: 0.08, StdDeviation: 0.15, MinReturn: -0.40, MaxReturn: 0.35},
			{Name: "Bonds", Allocation: 0.4, MedianReturn: 0.04, StdDeviation: 0.08, MinReturn: -0.10, MaxReturn: 0.15},
		}
		return req
	}

	o := NewOrchestrator()
	first, err := o.Run(context.Background(), build())
	require.NoError(t, err)
	second, err := o.Run(context.Background(), build())
	require.NoError(t, err)

	require.Equal(t, first.Seed, second.Seed)
	require.Equal(t, first.FinalValues, second.FinalValues)
	require.Equal(t, first.Sample, second.Sample)
}

func TestRunTrialsUseDistinctStreams(t *testing.T) {
	req := fixedRequest(0.07)
	req.TimeHorizon = 1
	req.RandomSeed = seedPtr(42)
	req.AssetClasses[0].StdDeviation = 0.15
	req.AssetClasses[0].MinReturn = -0.40
	req.AssetClasses[0].MaxReturn = 0.40

	ens, err := NewOrchestrator().Run(context.Background(), req)
	require.NoError(t, err)

	distinct := map[float64]struct{}{}
	for _, v := range ens.FinalValues {
		distinct[v] = struct{}{}
	}
	assert.Greater(t, len(distinct), 100, "independent sub-streams should not repeat each other")
}

func TestRunFinalValuesNeverNegative(t *testing.T) {
	req := fixedRequest(0.02)
	req.AssetClasses[0].StdDeviation = 0.25
	req.AssetClasses[0].MinReturn = -0.60
	req.AssetClasses[0].MaxReturn = 0.60
	req.TimeHorizon = 20
	req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 150_000, InflationRate: 0.05}
	req.RandomSeed = seedPtr(7)

	ens, err := NewOrchestrator().Run(context.Background(), req)
	require.NoError(t, err)
	for i, v := range ens.FinalValues {
		require.GreaterOrEqual(t, v, 0.0, "trial %d", i)
	}
	require.Len(t, ens.WithdrawalTotals, req.NumSimulations)
}

func TestRunBoundsTrajectorySample(t *testing.T) {
	req := fixedRequest(0.07)
	req.TimeHorizon = 4
	req.TrajectorySample = 10

	ens, err := NewOrchestrator().Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ens.Sample, 10)
	for _, trial := range ens.Sample {
		require.Len(t, trial.Years, req.TimeHorizon+1)
	}
}

func TestRunCancelledReturnsNoPartialResult(t *testing.T) {
	req := fixedRequest(0.07)
	req.TimeHorizon = 50

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ens, err := NewOrchestrator(WithWorkers(2)).Run(ctx, req)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, ens)
}

func TestRunProgressReachesTotal(t *testing.T) {
	req := fixedRequest(0.05)
	req.TimeHorizon = 1

	var high atomic.Int64
	_, err := NewOrchestrator().RunWithProgress(context.Background(), req, func(completed, total int) {
		for {
			cur := high.Load()
			if int64(completed) <= cur || high.CompareAndSwap(cur, int64(completed)) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(req.NumSimulations), high.Load())
}
