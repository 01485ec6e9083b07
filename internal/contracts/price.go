package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PricePoint 일별 종가
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries 시간순 종가 이력
// ⭐ 생성 후 불변: 필드는 비공개이고 접근자는 복사본을 반환
type PriceSeries struct {
	symbol string
	points []PricePoint
}

// NewPriceSeries validates and copies points into an immutable series.
// Dates must be strictly increasing and every close must be finite and > 0.
func NewPriceSeries(symbol string, points []PricePoint) (PriceSeries, error) {
	for i, p := range points {
		if err := ValidatePrice(p.Close); err != nil {
			return PriceSeries{}, fmt.Errorf("%w: index %d (%s)", err, i, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return PriceSeries{}, fmt.Errorf("%w: %s does not follow %s",
				ErrInvalidSeries, p.Date.Format("2006-01-02"), points[i-1].Date.Format("2006-01-02"))
		}
	}

	cp := make([]PricePoint, len(points))
	copy(cp, points)
	return PriceSeries{symbol: symbol, points: cp}, nil
}

// ValidatePrice rejects non-positive and non-finite prices
func ValidatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidPrice, p)
	}
	if p <= 0 {
		return fmt.Errorf("%w: %v is not positive", ErrInvalidPrice, p)
	}
	return nil
}

// Symbol returns the instrument symbol
func (s PriceSeries) Symbol() string { return s.symbol }

// Len returns the number of observations
func (s PriceSeries) Len() int { return len(s.points) }

// At returns the i-th observation
func (s PriceSeries) At(i int) PricePoint { return s.points[i] }

// Points returns a copy of the observations
func (s PriceSeries) Points() []PricePoint {
	cp := make([]PricePoint, len(s.points))
	copy(cp, s.points)
	return cp
}

// Closes returns a copy of the close prices
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Dates returns a copy of the observation dates
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// First / Last 범위 조회 (빈 시리즈면 zero time)
func (s PriceSeries) First() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[0].Date
}

func (s PriceSeries) Last() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[len(s.points)-1].Date
}

type priceSeriesJSON struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// MarshalJSON implements json.Marshaler
func (s PriceSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceSeriesJSON{Symbol: s.symbol, Points: s.points})
}

// UnmarshalJSON implements json.Unmarshaler, re-validating the series
func (s *PriceSeries) UnmarshalJSON(data []byte) error {
	var raw priceSeriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	series, err := NewPriceSeries(raw.Symbol, raw.Points)
	if err != nil {
		return err
	}
	*s = series
	return nil
}
