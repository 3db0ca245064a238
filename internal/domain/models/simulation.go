package models

import "time"

// YearState is one year of one trial after returns and withdrawals are applied.
// Withdrawal is the gross amount actually taken (0 when drawdown is disabled).
type YearState struct {
	Year       int     `json:"year"`
	Value      float64 `json:"value"`
	Return     float64 `json:"return"`
	Withdrawal float64 `json:"withdrawal"`
}

// Trial is one simulated portfolio trajectory, year 0 (initial state) through
// the time horizon inclusive.
type Trial struct {
	Years []YearState `json:"years"`
}

func (t Trial) FinalValue() float64 {
	if len(t.Years) == 0 {
		return 0
	}
	return t.Years[len(t.Years)-1].Value
}

// Values flattens the trajectory to per-year portfolio values.
func (t Trial) Values() []float64 {
	vals := make([]float64, len(t.Years))
	for i, y := range t.Years {
		vals[i] = y.Value
	}
	return vals
}

// Ensemble holds the raw output of a completed run before aggregation.
// FinalValues always covers every trial; Sample is a bounded subset of full
// trajectories kept for display.
type Ensemble struct {
	FinalValues      []float64
	WithdrawalTotals []float64 // per-trial cumulative gross withdrawals, nil when drawdown is off
	Sample           []Trial
	Seed             int64
}

// PercentileBand carries one metric evaluated at the reported percentiles.
type PercentileBand struct {
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// ExtremeCase is the best or worst trial outcome.
type ExtremeCase struct {
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
}

// PercentilePath is a representative trajectory whose final value is the
// closest retained match to the given percentile of final values.
type PercentilePath struct {
	Percentile int       `json:"percentile"`
	Label      string    `json:"label"`
	Values     []float64 `json:"values"`
}

// Statistics is the aggregate view of a run, computed from the complete
// final-value set. Probability fields that do not apply to the run's
// drawdown mode are omitted.
type Statistics struct {
	FinalValues       PercentileBand `json:"final_value_percentiles"`
	TotalReturns      PercentileBand `json:"total_return_percentiles"`
	AnnualizedReturns PercentileBand `json:"annualized_return_percentiles"`

	MeanFinalValue       float64 `json:"mean_final_value"`
	MeanTotalReturn      float64 `json:"mean_total_return"`
	MeanAnnualizedReturn float64 `json:"mean_annualized_return"`
	StdFinalValue        float64 `json:"std_final_value"`
	Volatility           float64 `json:"volatility"`

	BestCase  ExtremeCase `json:"best_case"`
	WorstCase ExtremeCase `json:"worst_case"`

	ProbabilityOfDoubling    float64  `json:"probability_of_doubling"`
	ProbabilityOfLoss        *float64 `json:"probability_of_loss,omitempty"`
	ProbabilityOfDepletion   *float64 `json:"probability_of_depletion,omitempty"`
	ProbabilityOfMaintaining *float64 `json:"probability_of_maintaining,omitempty"`
	TotalDrawdowns           *float64 `json:"total_drawdowns,omitempty"`
}

// RunRecord is the unit appended to run history, archived, and published as
// a run-completed event.
type RunRecord struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Parameters *SimulationRequest `json:"parameters"`
	Statistics *Statistics        `json:"statistics"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

// RunSummary is the flattened archive row for one completed run.
type RunSummary struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	InitialInvestment float64   `json:"initial_investment"`
	TimeHorizon       int       `json:"time_horizon"`
	NumSimulations    int       `json:"num_simulations"`
	Mode              string    `json:"mode"`
	AccountType       string    `json:"account_type"`
	MedianFinalValue  float64   `json:"median_final_value"`
	MeanFinalValue    float64   `json:"mean_final_value"`
	P5FinalValue      float64   `json:"p5_final_value"`
	P90FinalValue     float64   `json:"p90_final_value"`
	ElapsedMS         int64     `json:"elapsed_ms"`
}

// Summary flattens a record into its archive row.
func (r *RunRecord) Summary() *RunSummary {
	s := &RunSummary{ID: r.ID, Timestamp: r.Timestamp, ElapsedMS: r.ElapsedMS}
	if r.Parameters != nil {
		s.InitialInvestment = r.Parameters.InitialInvestment
		s.TimeHorizon = r.Parameters.TimeHorizon
		s.NumSimulations = r.Parameters.NumSimulations
		s.Mode = r.Parameters.Mode()
		s.AccountType = string(r.Parameters.TaxSettings.AccountType)
	}
	if r.Statistics != nil {
		s.MedianFinalValue = r.Statistics.FinalValues.P50
		s.MeanFinalValue = r.Statistics.MeanFinalValue
		s.P5FinalValue = r.Statistics.FinalValues.P5
		s.P90FinalValue = r.Statistics.FinalValues.P90
	}
	return s
}
