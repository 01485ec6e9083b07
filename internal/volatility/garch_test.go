package volatility

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

func newTestEstimator(cfg Config) *Estimator {
	return NewEstimator(cfg, zerolog.Nop())
}

// constantVolReturns i.i.d. N(0, sigma²) returns
func constantVolReturns(n int, sigma float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma * rng.NormFloat64()
	}
	return out
}

// garchReturns simulates a GARCH(1,1) process
func garchReturns(n int, omega, alpha, beta float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	s2 := omega / (1 - alpha - beta)
	prev := 0.0
	for i := range out {
		s2 = omega + alpha*prev*prev + beta*s2
		out[i] = math.Sqrt(s2) * rng.NormFloat64()
		prev = out[i]
	}
	return out
}

func toSeries(values []float64) contracts.ReturnSeries {
	dates := make([]time.Time, len(values))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return contracts.ReturnSeries{Dates: dates, Values: values}
}

func TestEstimate_Invariants(t *testing.T) {
	r := toSeries(garchReturns(500, 2e-6, 0.08, 0.9, 11))

	vol, params, err := newTestEstimator(DefaultConfig()).Estimate(r)
	require.NoError(t, err)

	require.Equal(t, r.Len(), vol.Len())
	assert.Equal(t, r.Dates, vol.Dates)
	for i, s := range vol.Sigma {
		assert.GreaterOrEqual(t, s, 0.0, "sigma[%d]", i)
		assert.False(t, math.IsNaN(s))
	}

	assert.Greater(t, params.Omega, 0.0)
	assert.GreaterOrEqual(t, params.Alpha, 0.0)
	assert.GreaterOrEqual(t, params.Beta, 0.0)
	assert.Less(t, params.Persistence(), 1.0)
	assert.Equal(t, 500, params.Observations)

	// σ_0 = sample standard deviation
	assert.InDelta(t, math.Sqrt(stat.Variance(r.Values, nil)), vol.Sigma[0], 1e-12)
}

func TestFit_ConstantVolatilityRecovered(t *testing.T) {
	const trueSigma = 0.01
	r := constantVolReturns(199, trueSigma, 3)

	vol, _, err := newTestEstimator(DefaultConfig()).Estimate(toSeries(r))
	require.NoError(t, err)

	mean := stat.Mean(vol.Sigma, nil)
	assert.InDelta(t, trueSigma, mean, 0.25*trueSigma, "mean conditional volatility")
	for _, s := range vol.Sigma {
		assert.Greater(t, s, 0.4*trueSigma)
		assert.Less(t, s, 2.5*trueSigma)
	}
}

func TestFit_PersistentProcess(t *testing.T) {
	r := garchReturns(2000, 1e-6, 0.1, 0.85, 5)

	est := newTestEstimator(DefaultConfig())
	params, err := est.Fit(r)
	require.NoError(t, err)

	assert.Greater(t, params.Persistence(), 0.5, "strongly persistent input should be detected")
	assert.Less(t, params.Persistence(), 1.0)

	// 최적화 결과는 시작점보다 나빠질 수 없음
	mu, variance := stat.MeanVariance(r, nil)
	start := contracts.GARCHParams{
		Omega: variance * (1 - initialAlpha - initialBeta), Alpha: initialAlpha, Beta: initialBeta,
		Mu: mu, InitialVariance: variance,
	}
	assert.GreaterOrEqual(t, params.LogLikelihood, LogLikelihood(start, r)-1e-6)
	assert.InDelta(t, LogLikelihood(params, r), params.LogLikelihood, 1e-6*math.Abs(params.LogLikelihood))
}

func TestFit_Deterministic(t *testing.T) {
	r := garchReturns(300, 2e-6, 0.05, 0.9, 21)
	est := newTestEstimator(DefaultConfig())

	a, err := est.Fit(r)
	require.NoError(t, err)
	b, err := est.Fit(r)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFit_InsufficientData(t *testing.T) {
	est := newTestEstimator(DefaultConfig())

	_, err := est.Fit(constantVolReturns(4, 0.01, 1))
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)

	_, err = est.Fit(constantVolReturns(5, 0.01, 1))
	assert.NoError(t, err, "exactly MinObservations returns must be accepted")

	strict := DefaultConfig()
	strict.MinObservations = 250
	_, err = newTestEstimator(strict).Fit(constantVolReturns(249, 0.01, 1))
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)
}

func TestFit_ZeroVariance(t *testing.T) {
	_, err := newTestEstimator(DefaultConfig()).Fit(make([]float64, 10))
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)
}

func TestFit_IterationBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1

	_, err := newTestEstimator(cfg).Fit(garchReturns(300, 2e-6, 0.05, 0.9, 2))
	assert.True(t, errors.Is(err, contracts.ErrConvergence), "got %v", err)
}

func TestFilter_ExtendsBeyondFitWindow(t *testing.T) {
	r := garchReturns(400, 2e-6, 0.08, 0.9, 8)
	params, err := newTestEstimator(DefaultConfig()).Fit(r[:300])
	require.NoError(t, err)

	full := Filter(params, r)
	prefix := Filter(params, r[:300])

	require.Len(t, full, 400)
	assert.Equal(t, prefix, full[:300], "later returns must not change earlier sigma")
}

func TestFilter_Recursion(t *testing.T) {
	p := contracts.GARCHParams{Omega: 1e-6, Alpha: 0.1, Beta: 0.8, Mu: 0.001, InitialVariance: 4e-4}
	r := []float64{0.02, -0.01, 0.005}

	got := Filter(p, r)

	s2 := 4e-4
	assert.InDelta(t, math.Sqrt(s2), got[0], 1e-15)
	s2 = 1e-6 + 0.1*(0.019*0.019) + 0.8*s2
	assert.InDelta(t, math.Sqrt(s2), got[1], 1e-15)
	s2 = 1e-6 + 0.1*(0.011*0.011) + 0.8*s2
	assert.InDelta(t, math.Sqrt(s2), got[2], 1e-15)
}

func TestEncodeDecode(t *testing.T) {
	omega, alpha, beta := decode(encode(2e-4, 0.07, 0.9), 2e-4)
	assert.InDelta(t, 0.07, alpha, 1e-12)
	assert.InDelta(t, 0.9, beta, 1e-12)
	assert.InDelta(t, 2e-4*0.03, omega, 1e-15)

	// 극단값에서도 제약 유지
	omega, alpha, beta = decode([]float64{-800, 60, -60}, 1e-4)
	assert.Greater(t, omega, 0.0)
	assert.GreaterOrEqual(t, alpha, 0.0)
	assert.Less(t, alpha+beta, 1.0)
}
