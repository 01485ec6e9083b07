package contracts

import "time"

// =============================================================================
// Derived series
// =============================================================================

// ReturnSeries 로그 수익률 시계열 (PriceSeries에서 첫 원소 제외하고 정렬)
type ReturnSeries struct {
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// Len returns the number of returns
func (r ReturnSeries) Len() int { return len(r.Values) }

// VolatilitySeries 조건부 변동성 σ_t (ReturnSeries와 같은 길이, 모두 ≥ 0)
type VolatilitySeries struct {
	Dates []time.Time `json:"dates"`
	Sigma []float64   `json:"sigma"`
}

// Len returns the number of volatility estimates
func (v VolatilitySeries) Len() int { return len(v.Sigma) }

// GARCHParams GARCH(1,1) 추정 결과
// σ²_t = Omega + Alpha·ε²_{t-1} + Beta·σ²_{t-1}
type GARCHParams struct {
	Omega           float64 `json:"omega"`
	Alpha           float64 `json:"alpha"`
	Beta            float64 `json:"beta"`
	Mu              float64 `json:"mu"`               // 적합 구간 평균 수익률
	InitialVariance float64 `json:"initial_variance"` // σ²_0 (적합 구간 표본분산)
	LogLikelihood   float64 `json:"log_likelihood"`
	Observations    int     `json:"observations"`
	Iterations      int     `json:"iterations"`
}

// Persistence α+β (정상성 조건: < 1)
func (p GARCHParams) Persistence() float64 {
	return p.Alpha + p.Beta
}

// UnconditionalVariance ω/(1-α-β)
func (p GARCHParams) UnconditionalVariance() float64 {
	return p.Omega / (1 - p.Persistence())
}

// =============================================================================
// Features
// =============================================================================

// NumFeatures (price[t], σ[t])
const NumFeatures = 2

// Scaler 컬럼별 표준화 파라미터 (학습 구간에서만 적합)
type Scaler struct {
	Mean [NumFeatures]float64 `json:"mean"`
	Std  [NumFeatures]float64 `json:"std"`
}

// Transform standardizes a raw feature row
func (s Scaler) Transform(row [NumFeatures]float64) [NumFeatures]float64 {
	var out [NumFeatures]float64
	for j := range row {
		out[j] = (row[j] - s.Mean[j]) / s.Std[j]
	}
	return out
}

// FeatureMatrix 회귀 입력
// Rows[i] = standardized (price[t], σ[t]), Labels[i] = price[t+1]
type FeatureMatrix struct {
	Dates     []time.Time            `json:"dates"` // 관측 시점 t
	Raw       [][NumFeatures]float64 `json:"raw"`
	Rows      [][NumFeatures]float64 `json:"rows"`
	Labels    []float64              `json:"labels"`
	TrainRows int                    `json:"train_rows"`
	Scaler    Scaler                 `json:"scaler"`
}

// Len returns the number of observations
func (f *FeatureMatrix) Len() int { return len(f.Rows) }

// TestRows returns the size of the chronological test suffix
func (f *FeatureMatrix) TestRows() int { return len(f.Rows) - f.TrainRows }

// Train returns the training prefix as regression input
func (f *FeatureMatrix) Train() ([][]float64, []float64) {
	return toSlices(f.Rows[:f.TrainRows]), f.Labels[:f.TrainRows]
}

// Test returns the test suffix as regression input
func (f *FeatureMatrix) Test() ([][]float64, []float64) {
	return toSlices(f.Rows[f.TrainRows:]), f.Labels[f.TrainRows:]
}

func toSlices(rows [][NumFeatures]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i := range rows {
		row := rows[i]
		out[i] = row[:]
	}
	return out
}

// =============================================================================
// Results
// =============================================================================

// ForecastResult 테스트 구간 실제 vs 예측
type ForecastResult struct {
	// Dates are the days whose price was predicted (t+1)
	Dates     []time.Time `json:"dates"`
	Actual    []float64   `json:"actual"`
	Predicted []float64   `json:"predicted"`
	MSE       float64     `json:"mse"`
	RMSE      float64     `json:"rmse"`
	MAE       float64     `json:"mae"`
	R2        float64     `json:"r2"`
}

// HistogramBin 밀도 히스토그램 구간
type HistogramBin struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// CurvePoint 정규분포 곡선 좌표
type CurvePoint struct {
	X   float64 `json:"x"`
	PDF float64 `json:"pdf"`
}

// DistributionStats 로그 수익률 분포 vs 정규분포 비교
type DistributionStats struct {
	Mean           float64        `json:"mean"`
	StdDev         float64        `json:"std_dev"`
	Skewness       float64        `json:"skewness"`
	ExcessKurtosis float64        `json:"excess_kurtosis"`
	Histogram      []HistogramBin `json:"histogram"`
	NormalCurve    []CurvePoint   `json:"normal_curve"`
}

// Split 시간순 학습/테스트 분할 크기
type Split struct {
	TrainRows int `json:"train_rows"`
	TestRows  int `json:"test_rows"`
}

// Report 파이프라인 1회 실행 결과 (표시 레이어가 소비)
// ⭐ SSOT: 재현성을 위해 ConfigHash 포함
type Report struct {
	RunID        string            `json:"run_id"`
	Symbol       string            `json:"symbol"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	ConfigHash   string            `json:"config_hash"`
	Prices       PriceSeries       `json:"prices"`
	Returns      ReturnSeries      `json:"returns"`
	Volatility   VolatilitySeries  `json:"volatility"`
	Params       GARCHParams       `json:"garch"`
	Split        Split             `json:"split"`
	Forecast     ForecastResult    `json:"forecast"`
	Distribution DistributionStats `json:"distribution"`
	CreatedAt    time.Time         `json:"created_at"`
}
