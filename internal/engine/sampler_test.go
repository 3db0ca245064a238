package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

func TestSampleReturnDegenerate(t *testing.T) {
	// Zero deviation with min = median = max pins every draw to the median.
	ac := models.AssetClass{Name: "Fixed", Allocation: 1, MedianReturn: 0.07, StdDeviation: 0, MinReturn: 0.07, MaxReturn: 0.07}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		require.Equal(t, 0.07, SampleReturn(rng, ac))
	}
}

func TestSampleReturnStaysWithinBounds(t *testing.T) {
	ac := models.AssetClass{Name: "Stocks", Allocation: 1, MedianReturn: 0.08, StdDeviation: 0.15, MinReturn: -0.40, MaxReturn: 0.35}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		r := SampleReturn(rng, ac)
		require.GreaterOrEqual(t, r, ac.MinReturn)
		require.LessOrEqual(t, r, ac.MaxReturn)
	}
}

func TestSampleReturnCensorsAtBounds(t *testing.T) {
	// A huge deviation against tight bounds should pile draws onto the
	// bounds themselves, not resample inside them.
	ac := models.AssetClass{Name: "Tight", Allocation: 1, MedianReturn: 0, StdDeviation: 5, MinReturn: -0.01, MaxReturn: 0.01}
	rng := rand.New(rand.NewSource(7))

	atMin, atMax := 0, 0
	for i := 0; i < 1000; i++ {
		switch SampleReturn(rng, ac) {
		case ac.MinReturn:
			atMin++
		case ac.MaxReturn:
			atMax++
		}
	}
	assert.Greater(t, atMin, 400)
	assert.Greater(t, atMax, 400)
}

func TestPortfolioReturnBlendsFixedWeights(t *testing.T) {
	assets := []models.AssetClass{
		{Name: "A", Allocation: 0.6, MedianReturn: 0.10, StdDeviation: 0, MinReturn: 0.10, MaxReturn: 0.10},
		{Name: "B", Allocation: 0.4, MedianReturn: 0.02, StdDeviation: 0, MinReturn: 0.02, MaxReturn: 0.02},
	}
	rng := rand.New(rand.NewSource(1))

	// 0.6*0.10 + 0.4*0.02 = 0.068
	assert.InDelta(t, 0.068, PortfolioReturn(rng, assets), 1e-12)
}
