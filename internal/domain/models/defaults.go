package models

// Documented default assumptions served by the API and used by the CLI when
// a request omits asset classes.
const (
	DefaultInitialInvestment = 5_000_000.0
	DefaultTimeHorizon       = 10
	DefaultNumSimulations    = 10_000
)

// DefaultAssetClasses returns the stock default portfolio assumptions. The
// slice is freshly allocated so callers may mutate it.
func DefaultAssetClasses() []AssetClass {
	return []AssetClass{
		{Name: "Stocks", MedianReturn: 0.08, StdDeviation: 0.15, MinReturn: -0.40, MaxReturn: 0.35, Allocation: 0.30},
		{Name: "Bonds", MedianReturn: 0.04, StdDeviation: 0.08, MinReturn: -0.10, MaxReturn: 0.15, Allocation: 0.30},
		{Name: "Alternatives", MedianReturn: 0.10, StdDeviation: 0.20, MinReturn: -0.30, MaxReturn: 0.50, Allocation: 0.20},
		{Name: "Private Credit", MedianReturn: 0.07, StdDeviation: 0.12, MinReturn: -0.15, MaxReturn: 0.25, Allocation: 0.20},
	}
}

// DefaultAssetsResponse is the payload of GET /api/default-assets.
type DefaultAssetsResponse struct {
	AssetClasses             []AssetClass `json:"asset_classes"`
	DefaultInitialInvestment float64      `json:"default_initial_investment"`
	DefaultTimeHorizon       int          `json:"default_time_horizon"`
	DefaultNumSimulations    int          `json:"default_num_simulations"`
}

func DefaultAssets() DefaultAssetsResponse {
	return DefaultAssetsResponse{
		AssetClasses:             DefaultAssetClasses(),
		DefaultInitialInvestment: DefaultInitialInvestment,
		DefaultTimeHorizon:       DefaultTimeHorizon,
		DefaultNumSimulations:    DefaultNumSimulations,
	}
}
