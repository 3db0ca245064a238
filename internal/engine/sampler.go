package engine

import (
	"math/rand"

	"FolioSim/internal/domain/models"
)

// SampleReturn draws one yearly return for an asset class: a normal draw
// centered on the median with the configured deviation, clamped into
// [MinReturn, MaxReturn]. Clamping censors the tails instead of resampling,
// so probability mass piles up at the bounds.
func SampleReturn(rng *rand.Rand, ac models.AssetClass) float64 {
	r := rng.NormFloat64()*ac.StdDeviation + ac.MedianReturn
	if r < ac.MinReturn {
		return ac.MinReturn
	}
	if r > ac.MaxReturn {
		return ac.MaxReturn
	}
	return r
}

// PortfolioReturn draws one return per asset class and blends them with the
// fixed allocation weights. Weights are reapplied every year, so the blend
// never drifts with performance.
func PortfolioReturn(rng *rand.Rand, assets []models.AssetClass) float64 {
	total := 0.0
	for _, ac := range assets {
		total += ac.Allocation * SampleReturn(rng, ac)
	}
	return total
}
