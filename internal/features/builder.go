package features

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// SplitPoint returns the chronological train/test sizes for rows observations.
// train = floor(rows·ratio), test = rows − train; both must be ≥ 1.
func SplitPoint(rows int, ratio float64) (train, test int, err error) {
	if rows < 2 {
		return 0, 0, fmt.Errorf("%w: need at least 2 feature rows to split, got %d",
			contracts.ErrInsufficientData, rows)
	}
	if ratio <= 0 || ratio >= 1 {
		return 0, 0, fmt.Errorf("split ratio must be in (0, 1), got %v", ratio)
	}

	train = int(math.Floor(float64(rows) * ratio))
	test = rows - train
	if train < 1 || test < 1 {
		return 0, 0, fmt.Errorf("%w: %d rows at ratio %.2f leaves train=%d test=%d",
			contracts.ErrInsufficientData, rows, ratio, train, test)
	}
	return train, test, nil
}

// RowCount is the number of feature rows produced from a price series of n points
func RowCount(prices int) int {
	if prices < 2 {
		return 0
	}
	return prices - 2
}

// Build assembles the (price[t], σ[t]) → price[t+1] regression matrix.
//
// vol is aligned with the returns, i.e. vol.Sigma[k] belongs to price index k+1,
// so the first price is dropped to line the columns up. Rows run over
// t ∈ [1, n−2]; the last price has no next-day label and is left out.
// Standardisation is fit on the training prefix only.
func Build(prices contracts.PriceSeries, vol contracts.VolatilitySeries, ratio float64) (*contracts.FeatureMatrix, error) {
	n := prices.Len()
	if vol.Len() != n-1 {
		return nil, fmt.Errorf("%w: volatility length %d does not match %d prices",
			contracts.ErrInsufficientData, vol.Len(), n)
	}

	rows := RowCount(n)
	train, _, err := SplitPoint(rows, ratio)
	if err != nil {
		return nil, err
	}

	closes := prices.Closes()
	dates := prices.Dates()

	fm := &contracts.FeatureMatrix{
		Dates:     make([]time.Time, rows),
		Raw:       make([][contracts.NumFeatures]float64, rows),
		Rows:      make([][contracts.NumFeatures]float64, rows),
		Labels:    make([]float64, rows),
		TrainRows: train,
	}

	for i := 0; i < rows; i++ {
		t := i + 1
		fm.Dates[i] = dates[t]
		fm.Raw[i] = [contracts.NumFeatures]float64{closes[t], vol.Sigma[t-1]}
		fm.Labels[i] = closes[t+1]
	}

	fm.Scaler = FitScaler(fm.Raw[:train])
	for i, raw := range fm.Raw {
		fm.Rows[i] = fm.Scaler.Transform(raw)
	}

	return fm, nil
}

// FitScaler computes per-column mean and population standard deviation.
// A constant column gets scale 1 so it maps to zero instead of NaN.
func FitScaler(rows [][contracts.NumFeatures]float64) contracts.Scaler {
	var sc contracts.Scaler
	if len(rows) == 0 {
		for j := range sc.Std {
			sc.Std[j] = 1
		}
		return sc
	}

	col := make([]float64, len(rows))
	for j := 0; j < contracts.NumFeatures; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}

		sc.Mean[j] = mean
		sc.Std[j] = std
	}
	return sc
}
