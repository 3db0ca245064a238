package models

import (
	"math"
	"time"
)

// Requests and responses for the simulation HTTP endpoints. Defined in domain
// for consistency and reuse.

// allocationTolerance is the accepted deviation of the allocation sum from 1.0.
const allocationTolerance = 0.001

// SimulationRequest is a fully specified run. Field-level constraints live in
// the tags; cross-field constraints are enforced by Validate before any trial
// executes.
type SimulationRequest struct {
	InitialInvestment float64      `json:"initial_investment" validate:"gt=0"`
	TimeHorizon       int          `json:"time_horizon" validate:"gte=1,lte=50"`
	NumSimulations    int          `json:"num_simulations" default:"10000" validate:"gte=5000"`
	AssetClasses      []AssetClass `json:"asset_classes" validate:"required,min=1,dive"`
	Drawdown          DrawdownPlan `json:"drawdown"`
	TaxSettings       TaxSettings  `json:"tax_settings"`

	// RandomSeed pins the run for reproducibility; omitted means a fresh seed.
	RandomSeed *int64 `json:"random_seed,omitempty"`
	// TrajectorySample caps how many full trajectories are retained for display.
	TrajectorySample int `json:"trajectory_sample" default:"100" validate:"gte=0,lte=1000"`
}

// Mode names the run's withdrawal mode for labels and summaries.
func (r *SimulationRequest) Mode() string {
	if r.Drawdown.Enabled {
		return "drawdown"
	}
	return "growth"
}

// Validate enforces the cross-field constraints: allocation sum within
// tolerance, ordered return bounds, non-negative deviations, and consistent
// drawdown tax settings. It returns a *ValidationError naming the violated
// constraint.
func (r *SimulationRequest) Validate() error {
	if r.InitialInvestment <= 0 {
		return validationErrorf("initial_investment must be greater than 0 (got %v)", r.InitialInvestment)
	}
	if r.TimeHorizon < 1 || r.TimeHorizon > 50 {
		return validationErrorf("time_horizon must be between 1 and 50 years (got %d)", r.TimeHorizon)
	}
	if r.NumSimulations < 5000 {
		return validationErrorf("num_simulations must be at least 5000 (got %d)", r.NumSimulations)
	}
	if len(r.AssetClasses) == 0 {
		return validationErrorf("at least one asset class is required")
	}

	sum := 0.0
	seen := make(map[string]struct{}, len(r.AssetClasses))
	for _, ac := range r.AssetClasses {
		if ac.Name == "" {
			return validationErrorf("asset class name is required")
		}
		if _, dup := seen[ac.Name]; dup {
			return validationErrorf("asset class %q: duplicate name", ac.Name)
		}
		seen[ac.Name] = struct{}{}
		if ac.Allocation < 0 || ac.Allocation > 1 {
			return validationErrorf("asset class %q: allocation must be between 0 and 1 (got %v)", ac.Name, ac.Allocation)
		}
		if ac.StdDeviation < 0 {
			return validationErrorf("asset class %q: std_deviation must be >= 0 (got %v)", ac.Name, ac.StdDeviation)
		}
		// a yearly return below -100% would drive portfolio values negative
		if ac.MinReturn < -1 {
			return validationErrorf("asset class %q: min_return must be >= -1 (got %v)", ac.Name, ac.MinReturn)
		}
		if ac.MinReturn > ac.MaxReturn {
			return validationErrorf("asset class %q: min_return %v exceeds max_return %v", ac.Name, ac.MinReturn, ac.MaxReturn)
		}
		if ac.MedianReturn < ac.MinReturn || ac.MedianReturn > ac.MaxReturn {
			return validationErrorf("asset class %q: median_return %v outside [%v, %v]", ac.Name, ac.MedianReturn, ac.MinReturn, ac.MaxReturn)
		}
		sum += ac.Allocation
	}
	// small slack so boundary sums like 0.999 survive float rounding
	if math.Abs(sum-1.0) > allocationTolerance+1e-9 {
		return validationErrorf("asset allocations must sum to 1.0 (got %.4f)", sum)
	}

	if r.Drawdown.Enabled {
		if r.Drawdown.FirstYearWithdrawal < 0 {
			return validationErrorf("drawdown first_year_withdrawal must be >= 0 (got %v)", r.Drawdown.FirstYearWithdrawal)
		}
		if !r.TaxSettings.AccountType.Valid() {
			return validationErrorf("tax_settings account_type must be taxable, tax_deferred, or tax_free (got %q)", r.TaxSettings.AccountType)
		}
		if rate := r.TaxSettings.CombinedRate(); rate >= 1 {
			return validationErrorf("combined tax rate for %s withdrawals must be below 100%% (got %v)", r.TaxSettings.AccountType, rate)
		}
	}
	return nil
}

// SimulationResponse is the full result of one run. Seed is the effective
// seed, echoed so any run can be replayed.
type SimulationResponse struct {
	ID               string             `json:"id"`
	Seed             int64              `json:"seed"`
	Parameters       *SimulationRequest `json:"parameters"`
	Statistics       *Statistics        `json:"statistics"`
	TrajectorySample [][]float64        `json:"trajectory_sample,omitempty"`
	PercentilePaths  []PercentilePath   `json:"percentile_paths,omitempty"`
	ElapsedMS        int64              `json:"elapsed_ms"`
	CompletedAt      time.Time          `json:"completed_at"`
}

// HistoryRequest bounds the run-history listing.
type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=10"`
}

// ArchiveRequest filters archived run summaries. From and To accept RFC3339
// or unix seconds; zero values mean unbounded.
type ArchiveRequest struct {
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
