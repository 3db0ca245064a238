package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

// fixedRequest builds a single-asset request whose yearly return is pinned to
// rate, so trials are fully deterministic.
func fixedRequest(rate float64) *models.SimulationRequest {
	return &models.SimulationRequest{
		InitialInvestment: 1_000_000,
		TimeHorizon:       5,
		NumSimulations:    5000,
		AssetClasses: []models.AssetClass{
			{Name: "Fixed", Allocation: 1, MedianReturn: rate, StdDeviation: 0, MinReturn: rate, MaxReturn: rate},
		},
		TaxSettings: models.TaxSettings{AccountType: models.AccountTaxFree},
	}
}

func TestTrialDeterministicCompounding(t *testing.T) {
	req := fixedRequest(0.07)
	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))

	require.Len(t, trial.Years, 6)
	require.Equal(t, 0, trial.Years[0].Year)
	require.Equal(t, req.InitialInvestment, trial.Years[0].Value)

	for y := 1; y <= 5; y++ {
		expected := 1_000_000 * math.Pow(1.07, float64(y))
		assert.InDelta(t, expected, trial.Years[y].Value, 1e-6, "year %d", y)
		assert.InDelta(t, 0.07, trial.Years[y].Return, 1e-12)
	}
	assert.InDelta(t, 1_402_551.73, trial.FinalValue(), 0.01)
}

func TestTrialDrawdownSchedule(t *testing.T) {
	req := fixedRequest(0.07)
	req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 100_000, InflationRate: 0}

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))

	// 1,000,000 * 1.07 - 100,000 = 970,000; 970,000 * 1.07 - 100,000 = 937,900
	assert.InDelta(t, 970_000, trial.Years[1].Value, 1e-6)
	assert.InDelta(t, 937_900, trial.Years[2].Value, 1e-6)
}

func TestTrialWithdrawalInflatesAlongSchedule(t *testing.T) {
	req := fixedRequest(0)
	req.TimeHorizon = 3
	req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 100_000, InflationRate: 0.03}

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))

	assert.InDelta(t, 100_000, trial.Years[1].Withdrawal, 1e-9)
	assert.InDelta(t, 103_000, trial.Years[2].Withdrawal, 1e-9)
	assert.InDelta(t, 100_000*1.03*1.03, trial.Years[3].Withdrawal, 1e-9)
}

func TestTrialGrossUpByAccountType(t *testing.T) {
	tests := []struct {
		name          string
		tax           models.TaxSettings
		expectedGross float64
	}{
		{
			name:          "tax free needs no gross up",
			tax:           models.TaxSettings{AccountType: models.AccountTaxFree, OrdinaryIncomeTaxRate: 0.30, CapitalGainsTaxRate: 0.20, StateTaxRate: 0.05},
			expectedGross: 100_000,
		},
		{
			name:          "tax deferred uses ordinary income plus state",
			tax:           models.TaxSettings{AccountType: models.AccountTaxDeferred, OrdinaryIncomeTaxRate: 0.30, CapitalGainsTaxRate: 0.20, StateTaxRate: 0.05},
			expectedGross: 100_000 / 0.65,
		},
		{
			name:          "taxable uses capital gains plus state",
			tax:           models.TaxSettings{AccountType: models.AccountTaxable, OrdinaryIncomeTaxRate: 0.30, CapitalGainsTaxRate: 0.20, StateTaxRate: 0.05},
			expectedGross: 100_000 / 0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fixedRequest(0.07)
			req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 100_000}
			req.TaxSettings = tt.tax

			trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))
			assert.InDelta(t, tt.expectedGross, trial.Years[1].Withdrawal, 1e-9)
		})
	}
}

func TestTrialDepletionFloorsAtZero(t *testing.T) {
	req := fixedRequest(0)
	req.InitialInvestment = 100_000
	req.TimeHorizon = 4
	req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 60_000}

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))

	assert.InDelta(t, 40_000, trial.Years[1].Value, 1e-9)
	assert.InDelta(t, 60_000, trial.Years[1].Withdrawal, 1e-9)

	// Year 2 can only satisfy part of the target, then the portfolio is spent.
	assert.Equal(t, 0.0, trial.Years[2].Value)
	assert.InDelta(t, 40_000, trial.Years[2].Withdrawal, 1e-9)

	for y := 3; y <= 4; y++ {
		assert.Equal(t, 0.0, trial.Years[y].Value, "year %d stays depleted", y)
		assert.Equal(t, 0.0, trial.Years[y].Withdrawal, "year %d takes nothing", y)
	}
}

func TestTrialNeverGoesNegative(t *testing.T) {
	req := fixedRequest(-0.10)
	req.TimeHorizon = 30
	req.Drawdown = models.DrawdownPlan{Enabled: true, FirstYearWithdrawal: 400_000, InflationRate: 0.10}

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(99)))
	for _, y := range trial.Years {
		require.GreaterOrEqual(t, y.Value, 0.0, "year %d", y.Year)
	}
}

// Bounds below -100% are rejected up front, but the runner itself must not
// rely on that: even a blended return past total loss only zeroes the value.
func TestTrialFloorsSubTotalLossReturn(t *testing.T) {
	req := fixedRequest(-1.5)
	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))

	for _, y := range trial.Years {
		require.GreaterOrEqual(t, y.Value, 0.0, "year %d", y.Year)
	}
	assert.Equal(t, 0.0, trial.Years[1].Value)
	assert.Equal(t, 0.0, trial.FinalValue())
}

func TestTrialZeroHorizonIsInitialStateOnly(t *testing.T) {
	req := fixedRequest(0.07)
	req.TimeHorizon = 0

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))
	require.Len(t, trial.Years, 1)
	assert.Equal(t, req.InitialInvestment, trial.FinalValue())
}

func TestTrialZeroInitialInvestment(t *testing.T) {
	req := fixedRequest(0.07)
	req.InitialInvestment = 0
	req.TimeHorizon = 3

	trial := NewTrialRunner(req).Run(rand.New(rand.NewSource(1)))
	for _, y := range trial.Years {
		assert.Equal(t, 0.0, y.Value)
	}
}
