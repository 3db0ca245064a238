package engine

import (
	"math"
	"math/rand"

	"FolioSim/internal/domain/models"
)

// TrialRunner produces independent trials for one validated request. It never
// re-checks the request; validation is a precondition of construction.
type TrialRunner struct {
	req      *models.SimulationRequest
	taxRate  float64
	drawdown bool
}

func NewTrialRunner(req *models.SimulationRequest) *TrialRunner {
	r := &TrialRunner{req: req, drawdown: req.Drawdown.Enabled}
	if r.drawdown {
		r.taxRate = req.TaxSettings.CombinedRate()
	}
	return r
}

// Run simulates one trajectory with the given private random source. Year 0
// is the initial state; each later year draws returns, compounds, then
// withdraws. The portfolio floors at 0 and stays depleted: neither a blended
// return below -100% nor an unmet withdrawal can drive the value negative,
// and unmet withdrawals are lost, never carried over.
func (t *TrialRunner) Run(rng *rand.Rand) models.Trial {
	years := make([]models.YearState, 0, t.req.TimeHorizon+1)
	value := t.req.InitialInvestment
	years = append(years, models.YearState{Year: 0, Value: value})

	for y := 1; y <= t.req.TimeHorizon; y++ {
		ret := PortfolioReturn(rng, t.req.AssetClasses)
		value *= 1 + ret
		if value < 0 {
			value = 0
		}

		taken := 0.0
		if t.drawdown && value > 0 {
			gross := t.grossWithdrawal(y)
			taken = gross
			if taken > value {
				taken = value
			}
			value -= taken
		}
		years = append(years, models.YearState{Year: y, Value: value, Return: ret, Withdrawal: taken})
	}
	return models.Trial{Years: years}
}

// grossWithdrawal is the year-y withdrawal target: the first-year net amount
// inflated along the nominal schedule, grossed up so the net survives taxes.
// The schedule is independent of the realized balance.
func (t *TrialRunner) grossWithdrawal(year int) float64 {
	net := t.req.Drawdown.FirstYearWithdrawal * math.Pow(1+t.req.Drawdown.InflationRate, float64(year-1))
	return net / (1 - t.taxRate)
}
