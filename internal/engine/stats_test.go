package engine

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p        float64
		expected float64
	}{
		{5, 1.2},   // rank h = 4*0.05 = 0.2
		{25, 2},    // h = 1
		{50, 3},    // h = 2
		{75, 4},    // h = 3
		{90, 4.6},  // h = 3.6
		{0, 1},
		{100, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Percentile(sorted, tt.p), 1e-12, "p%v", tt.p)
	}
}

func TestPercentileDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 7.5, Percentile([]float64{7.5}, 90))
}

func TestPercentileBandsAreMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vals := make([]float64, 5000)
	for i := range vals {
		vals[i] = rng.NormFloat64()*250_000 + 1_000_000
	}
	sort.Float64s(vals)

	prev := math.Inf(-1)
	for _, p := range percentilePoints {
		v := Percentile(vals, p)
		require.GreaterOrEqual(t, v, prev, "p%v", p)
		prev = v
	}
}

func TestAggregateDegenerateEnsemble(t *testing.T) {
	req := fixedRequest(0.07)
	final := 1_000_000 * math.Pow(1.07, 5)
	finals := make([]float64, 5000)
	for i := range finals {
		finals[i] = final
	}

	stats := Aggregate(req, &models.Ensemble{FinalValues: finals})

	for _, v := range bandValues(stats.FinalValues) {
		assert.InDelta(t, 1_402_551.73, v, 0.01)
	}
	for _, v := range bandValues(stats.AnnualizedReturns) {
		assert.InDelta(t, 0.07, v, 1e-9)
	}
	assert.InDelta(t, final, stats.MeanFinalValue, 1e-6)
	assert.Equal(t, 0.0, stats.StdFinalValue)
	assert.Equal(t, 0.0, stats.Volatility)
	assert.Equal(t, 0.0, stats.ProbabilityOfDoubling)

	require.NotNil(t, stats.ProbabilityOfLoss)
	assert.Equal(t, 0.0, *stats.ProbabilityOfLoss)
	assert.Nil(t, stats.ProbabilityOfDepletion)
	assert.Nil(t, stats.ProbabilityOfMaintaining)
	assert.Nil(t, stats.TotalDrawdowns)
}

func TestAggregateProbabilitiesByMode(t *testing.T) {
	finals := []float64{0, 0, 50, 100, 150, 200, 250, 300}

	req := fixedRequest(0.05)
	req.InitialInvestment = 100

	t.Run("drawdown off reports probability of loss", func(t *testing.T) {
		stats := Aggregate(req, &models.Ensemble{FinalValues: finals})

		require.NotNil(t, stats.ProbabilityOfLoss)
		assert.InDelta(t, 3.0/8, *stats.ProbabilityOfLoss, 1e-12)
		assert.InDelta(t, 3.0/8, stats.ProbabilityOfDoubling, 1e-12)
		assert.Nil(t, stats.ProbabilityOfDepletion)
		assert.Nil(t, stats.ProbabilityOfMaintaining)
	})

	t.Run("drawdown on reports depletion and maintenance", func(t *testing.T) {
		req := fixedRequest(0.05)
		req.InitialInvestment = 100
		req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 10}
		withdrawals := []float64{10, 20, 30, 40, 50, 60, 70, 80}

		stats := Aggregate(req, &models.Ensemble{FinalValues: finals, WithdrawalTotals: withdrawals})

		require.NotNil(t, stats.ProbabilityOfDepletion)
		assert.InDelta(t, 2.0/8, *stats.ProbabilityOfDepletion, 1e-12)
		require.NotNil(t, stats.ProbabilityOfMaintaining)
		assert.InDelta(t, 5.0/8, *stats.ProbabilityOfMaintaining, 1e-12)
		require.NotNil(t, stats.TotalDrawdowns)
		assert.InDelta(t, 45, *stats.TotalDrawdowns, 1e-12)
		assert.Nil(t, stats.ProbabilityOfLoss)
	})
}

func TestAggregateDescriptiveStats(t *testing.T) {
	req := fixedRequest(0.05)
	req.InitialInvestment = 100
	req.TimeHorizon = 1

	stats := Aggregate(req, &models.Ensemble{FinalValues: []float64{100, 200, 300}})

	assert.InDelta(t, 200, stats.MeanFinalValue, 1e-12)
	assert.InDelta(t, 1.0, stats.MeanTotalReturn, 1e-12)
	assert.InDelta(t, math.Sqrt(20000.0/3), stats.StdFinalValue, 1e-9)
	assert.InDelta(t, stats.StdFinalValue/200, stats.Volatility, 1e-12)

	assert.Equal(t, 300.0, stats.BestCase.FinalValue)
	assert.InDelta(t, 2.0, stats.BestCase.TotalReturn, 1e-12)
	assert.Equal(t, 100.0, stats.WorstCase.FinalValue)
	assert.InDelta(t, 0.0, stats.WorstCase.TotalReturn, 1e-12)
}

func TestAggregateUsesEveryFinalValue(t *testing.T) {
	// The trajectory sample must play no part in the statistics.
	req := fixedRequest(0.05)
	req.InitialInvestment = 100

	sample := []models.Trial{{Years: []models.YearState{{Year: 0, Value: 100}, {Year: 1, Value: 1}}}}
	stats := Aggregate(req, &models.Ensemble{FinalValues: []float64{100, 300}, Sample: sample})

	assert.InDelta(t, 200, stats.MeanFinalValue, 1e-12)
}

func TestPercentilePathsNearestMatch(t *testing.T) {
	mk := func(final float64) models.Trial {
		return models.Trial{Years: []models.YearState{{Year: 0, Value: 100}, {Year: 1, Value: final}}}
	}
	ens := &models.Ensemble{Sample: []models.Trial{mk(10), mk(20), mk(30)}}
	stats := &models.Statistics{FinalValues: models.PercentileBand{P5: 10, P25: 12, P50: 19, P75: 27, P90: 30}}

	paths := PercentilePaths(ens, stats)
	require.Len(t, paths, 5)

	assert.Equal(t, "p5", paths[0].Label)
	assert.Equal(t, []float64{100, 10}, paths[0].Values)
	assert.Equal(t, 50, paths[2].Percentile)
	assert.Equal(t, []float64{100, 20}, paths[2].Values, "nearest retained final to 19 is 20")
	assert.Equal(t, []float64{100, 30}, paths[4].Values)
}

func TestPercentilePathsEmptySample(t *testing.T) {
	assert.Nil(t, PercentilePaths(&models.Ensemble{}, &models.Statistics{}))
}
