package returns

import (
	"fmt"
	"math"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// Compute derives log-returns from a price series.
// r[i] = ln(close[i+1] / close[i]), dated at the later observation.
func Compute(series contracts.PriceSeries) (contracts.ReturnSeries, error) {
	values, err := LogReturns(series.Closes())
	if err != nil {
		return contracts.ReturnSeries{}, err
	}

	return contracts.ReturnSeries{
		Dates:  series.Dates()[1:],
		Values: values,
	}, nil
}

// LogReturns computes log-returns of raw closes.
// 모든 가격을 먼저 검증한 뒤에만 로그를 계산함 (NaN/Inf 방지)
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", contracts.ErrInsufficientData, len(closes))
	}

	for i, p := range closes {
		if err := contracts.ValidatePrice(p); err != nil {
			return nil, fmt.Errorf("%w (index %d)", err, i)
		}
	}

	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = math.Log(closes[i] / closes[i-1])
	}
	return out, nil
}
