package engine

import (
	"fmt"
	"math"
	"sort"

	"FolioSim/internal/domain/models"
)

// percentilePoints are the reported percentiles, ascending.
var percentilePoints = [5]float64{5, 25, 50, 75, 90}

// Percentile evaluates the p-th percentile of ascending-sorted values using
// linear interpolation between order statistics: rank h = (n-1)*p/100, result
// = v[floor(h)] + (h-floor(h)) * (v[ceil(h)] - v[floor(h)]).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	h := float64(n-1) * p / 100
	if h <= 0 {
		return sorted[0]
	}
	if h >= float64(n-1) {
		return sorted[n-1]
	}
	lo := int(math.Floor(h))
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Aggregate reduces a complete ensemble into the reported statistics. Only
// the full final-value set participates; the trajectory sample is display
// material and never feeds a statistic.
func Aggregate(req *models.SimulationRequest, ens *models.Ensemble) *models.Statistics {
	if len(ens.FinalValues) == 0 {
		return &models.Statistics{}
	}
	sorted := append([]float64(nil), ens.FinalValues...)
	sort.Float64s(sorted)

	initial := req.InitialInvestment
	horizon := req.TimeHorizon

	var fv models.PercentileBand
	for i, p := range percentilePoints {
		v := Percentile(sorted, p)
		setBand(&fv, i, v)
	}
	var totals, annuals models.PercentileBand
	for i, v := range bandValues(fv) {
		setBand(&totals, i, totalReturn(v, initial))
		setBand(&annuals, i, annualizedReturn(v, initial, horizon))
	}

	mu := mean(ens.FinalValues)
	sd := stdDev(ens.FinalValues, mu)

	stats := &models.Statistics{
		FinalValues:       fv,
		TotalReturns:      totals,
		AnnualizedReturns: annuals,
		MeanFinalValue:    mu,
		MeanTotalReturn:   totalReturn(mu, initial),
		StdFinalValue:     sd,
		BestCase: models.ExtremeCase{
			FinalValue:  sorted[len(sorted)-1],
			TotalReturn: totalReturn(sorted[len(sorted)-1], initial),
		},
		WorstCase: models.ExtremeCase{
			FinalValue:  sorted[0],
			TotalReturn: totalReturn(sorted[0], initial),
		},
	}
	if mu != 0 {
		stats.Volatility = sd / mu
	}

	annualSum := 0.0
	for _, v := range ens.FinalValues {
		annualSum += annualizedReturn(v, initial, horizon)
	}
	stats.MeanAnnualizedReturn = annualSum / float64(len(ens.FinalValues))

	n := float64(len(ens.FinalValues))
	stats.ProbabilityOfDoubling = countIf(ens.FinalValues, func(v float64) bool { return v >= 2*initial }) / n
	if req.Drawdown.Enabled {
		stats.ProbabilityOfDepletion = floatPtr(countIf(ens.FinalValues, func(v float64) bool { return v == 0 }) / n)
		stats.ProbabilityOfMaintaining = floatPtr(countIf(ens.FinalValues, func(v float64) bool { return v >= initial }) / n)
		if len(ens.WithdrawalTotals) > 0 {
			stats.TotalDrawdowns = floatPtr(mean(ens.WithdrawalTotals))
		}
	} else {
		stats.ProbabilityOfLoss = floatPtr(countIf(ens.FinalValues, func(v float64) bool { return v < initial }) / n)
	}
	return stats
}

// PercentilePaths picks, per reported percentile, the retained trajectory
// whose final value lands closest to that percentile of the full final-value
// set. Because the candidates come from a bounded sample, the paths are an
// approximation of shape, never a re-simulation.
func PercentilePaths(ens *models.Ensemble, stats *models.Statistics) []models.PercentilePath {
	if len(ens.Sample) == 0 {
		return nil
	}
	targets := bandValues(stats.FinalValues)
	paths := make([]models.PercentilePath, 0, len(targets))
	for i, target := range targets {
		best, dist := 0, math.Inf(1)
		for j, trial := range ens.Sample {
			if d := math.Abs(trial.FinalValue() - target); d < dist {
				best, dist = j, d
			}
		}
		p := int(percentilePoints[i])
		paths = append(paths, models.PercentilePath{
			Percentile: p,
			Label:      fmt.Sprintf("p%d", p),
			Values:     ens.Sample[best].Values(),
		})
	}
	return paths
}

func totalReturn(finalValue, initial float64) float64 {
	if initial == 0 {
		return 0
	}
	return finalValue/initial - 1
}

func annualizedReturn(finalValue, initial float64, horizon int) float64 {
	if initial == 0 || horizon <= 0 {
		return 0
	}
	return math.Pow(finalValue/initial, 1/float64(horizon)) - 1
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stdDev is the population standard deviation around mu.
func stdDev(vals []float64, mu float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

func countIf(vals []float64, pred func(float64) bool) float64 {
	count := 0
	for _, v := range vals {
		if pred(v) {
			count++
		}
	}
	return float64(count)
}

func floatPtr(v float64) *float64 { return &v }

func bandValues(b models.PercentileBand) [5]float64 {
	return [5]float64{b.P5, b.P25, b.P50, b.P75, b.P90}
}

func setBand(b *models.PercentileBand, i int, v float64) {
	switch i {
	case 0:
		b.P5 = v
	case 1:
		b.P25 = v
	case 2:
		b.P50 = v
	case 3:
		b.P75 = v
	case 4:
		b.P90 = v
	}
}
