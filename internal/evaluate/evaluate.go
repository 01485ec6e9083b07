package evaluate

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

const (
	// DefaultBins 수익률 히스토그램 구간 수
	DefaultBins = 30

	// CurvePoints 정규분포 곡선 샘플 수
	CurvePoints = 100
)

// Forecast compares predictions against the realised test-suffix prices.
// R² is 1 − SS_res/SS_tot; a constant actual series yields 1 for a perfect
// fit and 0 otherwise so the metric is always finite.
func Forecast(dates []time.Time, actual, predicted []float64) (contracts.ForecastResult, error) {
	n := len(actual)
	if n == 0 {
		return contracts.ForecastResult{}, fmt.Errorf("%w: test suffix is empty", contracts.ErrEmptyResult)
	}
	if len(predicted) != n || len(dates) != n {
		return contracts.ForecastResult{}, fmt.Errorf("%w: %d actual, %d predicted, %d dates",
			contracts.ErrInsufficientData, n, len(predicted), len(dates))
	}

	var ssRes, absSum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		ssRes += d * d
		absSum += math.Abs(d)
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		d := v - mean
		ssTot += d * d
	}

	var r2 float64
	switch {
	case ssTot > 0:
		r2 = 1 - ssRes/ssTot
	case ssRes == 0:
		r2 = 1
	default:
		r2 = 0
	}

	mse := ssRes / float64(n)
	return contracts.ForecastResult{
		Dates:     append([]time.Time(nil), dates...),
		Actual:    append([]float64(nil), actual...),
		Predicted: append([]float64(nil), predicted...),
		MSE:       mse,
		RMSE:      math.Sqrt(mse),
		MAE:       absSum / float64(n),
		R2:        r2,
	}, nil
}

// Distribution summarises the log-return distribution and prepares the
// density histogram plus a normal pdf with the same mean and σ.
// σ uses the n−1 denominator.
func Distribution(returns []float64, bins int) (contracts.DistributionStats, error) {
	n := len(returns)
	if n < 2 {
		return contracts.DistributionStats{}, fmt.Errorf("%w: distribution needs at least 2 returns, got %d",
			contracts.ErrInsufficientData, n)
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	mean, std := stat.MeanStdDev(returns, nil)
	out := contracts.DistributionStats{
		Mean:   mean,
		StdDev: std,
	}
	if std > 0 {
		out.Skewness = stat.Skew(returns, nil)
		out.ExcessKurtosis = stat.ExKurtosis(returns, nil)
	}

	lo, hi := floats.Min(returns), floats.Max(returns)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	out.Histogram = histogram(returns, lo, hi, bins)
	if std > 0 {
		out.NormalCurve = normalCurve(mean, std, lo, hi, CurvePoints)
	}
	return out, nil
}

// histogram 밀도 정규화 (Σ density·width = 1)
func histogram(values []float64, lo, hi float64, bins int) []contracts.HistogramBin {
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// 최댓값이 마지막 구간에 포함되도록 상한을 살짝 올림
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), values...)
	floats.Argsort(sorted, make([]int, len(sorted)))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	width := (hi - lo) / float64(bins)
	total := float64(len(values))
	out := make([]contracts.HistogramBin, bins)
	for i := range out {
		out[i] = contracts.HistogramBin{
			Lower:   dividers[i],
			Upper:   dividers[i+1],
			Count:   int(counts[i]),
			Density: counts[i] / (total * width),
		}
	}
	out[bins-1].Upper = hi
	return out
}

func normalCurve(mean, std, lo, hi float64, points int) []contracts.CurvePoint {
	dist := distuv.Normal{Mu: mean, Sigma: std}
	xs := make([]float64, points)
	floats.Span(xs, lo, hi)
	// 히스토그램 경계와 정확히 일치
	xs[0], xs[points-1] = lo, hi

	out := make([]contracts.CurvePoint, points)
	for i, x := range xs {
		out[i] = contracts.CurvePoint{X: x, PDF: dist.Prob(x)}
	}
	return out
}
