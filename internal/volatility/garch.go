package volatility

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// =============================================================================
// GARCH(1,1) conditional volatility
// =============================================================================
// σ²_t = ω + α·ε²_{t-1} + β·σ²_{t-1},  ε_t = r_t − μ,  σ²_0 = sample variance
// 파라미터는 가우시안 로그우도 최대화로 추정 (Nelder-Mead)

const (
	// stationarityCap α+β 상한 (α+β < 1 을 엄격히 보장)
	stationarityCap = 0.9999

	// 초기값 (arch 패키지 기본 시작점과 동일한 영역)
	initialAlpha = 0.05
	initialBeta  = 0.90
)

// Config 추정기 설정
type Config struct {
	MinObservations int     // 최소 수익률 개수 (기본: 5)
	MaxIterations   int     // 최적화 반복 상한 (기본: 2000)
	Tolerance       float64 // 평균 음의 로그우도 개선 허용치
	StallIterations int     // 개선 없이 허용되는 반복 수
}

// DefaultConfig 기본 설정
func DefaultConfig() Config {
	return Config{
		MinObservations: 5,
		MaxIterations:   2000,
		Tolerance:       1e-10,
		StallIterations: 100,
	}
}

// Estimator GARCH(1,1) 추정기
// 상태 없음: 동시 호출 간 공유되는 적합 상태가 없다
type Estimator struct {
	config Config
	log    zerolog.Logger
}

// NewEstimator 새 추정기 생성
func NewEstimator(config Config, log zerolog.Logger) *Estimator {
	return &Estimator{
		config: config,
		log:    log.With().Str("component", "volatility.garch").Logger(),
	}
}

// Estimate fits the model on the return series and returns the conditional
// volatility for every return together with the fitted parameters.
func (e *Estimator) Estimate(returns contracts.ReturnSeries) (contracts.VolatilitySeries, contracts.GARCHParams, error) {
	params, err := e.Fit(returns.Values)
	if err != nil {
		return contracts.VolatilitySeries{}, contracts.GARCHParams{}, err
	}

	return contracts.VolatilitySeries{
		Dates: append([]time.Time(nil), returns.Dates...),
		Sigma: Filter(params, returns.Values),
	}, params, nil
}

// Fit estimates (ω, α, β) by maximum likelihood.
func (e *Estimator) Fit(returns []float64) (contracts.GARCHParams, error) {
	n := len(returns)
	if n < e.config.MinObservations {
		return contracts.GARCHParams{}, fmt.Errorf("%w: GARCH fit needs at least %d returns, got %d",
			contracts.ErrInsufficientData, e.config.MinObservations, n)
	}
	if n < 2 {
		return contracts.GARCHParams{}, fmt.Errorf("%w: GARCH fit needs at least 2 returns, got %d",
			contracts.ErrInsufficientData, n)
	}

	mu, variance := stat.MeanVariance(returns, nil)
	if !(variance > 0) || math.IsInf(variance, 0) {
		return contracts.GARCHParams{}, fmt.Errorf("%w: return series has zero variance",
			contracts.ErrInsufficientData)
	}

	eps := make([]float64, n)
	for i, r := range returns {
		eps[i] = r - mu
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			omega, alpha, beta := decode(x, variance)
			return negLogLikelihood(eps, omega, alpha, beta, variance) / float64(n)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: e.config.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   e.config.Tolerance,
			Iterations: e.config.StallIterations,
		},
	}

	x0 := encode(variance, initialAlpha, initialBeta)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return contracts.GARCHParams{}, fmt.Errorf("%w: %v", contracts.ErrConvergence, err)
	}

	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit, optimize.Failure:
		e.log.Warn().
			Str("status", result.Status.String()).
			Int("iterations", result.Stats.MajorIterations).
			Msg("GARCH optimizer stopped before converging")
		return contracts.GARCHParams{}, fmt.Errorf("%w: optimizer status %s after %d iterations",
			contracts.ErrConvergence, result.Status, result.Stats.MajorIterations)
	}
	if err != nil {
		return contracts.GARCHParams{}, fmt.Errorf("%w: %v", contracts.ErrConvergence, err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return contracts.GARCHParams{}, fmt.Errorf("%w: non-finite likelihood", contracts.ErrConvergence)
	}

	omega, alpha, beta := decode(result.X, variance)
	params := contracts.GARCHParams{
		Omega:           omega,
		Alpha:           alpha,
		Beta:            beta,
		Mu:              mu,
		InitialVariance: variance,
		LogLikelihood:   -result.F * float64(n),
		Observations:    n,
		Iterations:      result.Stats.MajorIterations,
	}

	e.log.Debug().
		Int("observations", n).
		Float64("omega", omega).
		Float64("alpha", alpha).
		Float64("beta", beta).
		Float64("log_likelihood", params.LogLikelihood).
		Int("iterations", params.Iterations).
		Str("status", result.Status.String()).
		Msg("GARCH fit completed")

	return params, nil
}

// Filter runs the variance recursion for fixed parameters and returns σ_t.
// σ_t uses only returns before t, so the series can be extended past the
// window the parameters were fitted on.
func Filter(p contracts.GARCHParams, returns []float64) []float64 {
	out := make([]float64, len(returns))
	s2 := p.InitialVariance
	for t := range returns {
		if t > 0 {
			e := returns[t-1] - p.Mu
			s2 = p.Omega + p.Alpha*e*e + p.Beta*s2
		}
		out[t] = math.Sqrt(math.Max(s2, 0))
	}
	return out
}

// LogLikelihood evaluates the Gaussian log-likelihood of returns under p
func LogLikelihood(p contracts.GARCHParams, returns []float64) float64 {
	eps := make([]float64, len(returns))
	for i, r := range returns {
		eps[i] = r - p.Mu
	}
	return -negLogLikelihood(eps, p.Omega, p.Alpha, p.Beta, p.InitialVariance)
}

// negLogLikelihood −LL = ½ Σ [ln 2π + ln σ²_t + ε²_t/σ²_t]
// 유효하지 않은 분산이 나오면 +Inf (최적화기가 그 점을 버림)
func negLogLikelihood(eps []float64, omega, alpha, beta, sigma0 float64) float64 {
	s2 := sigma0
	var sum float64
	for t := range eps {
		if t > 0 {
			s2 = omega + alpha*eps[t-1]*eps[t-1] + beta*s2
		}
		if !(s2 > 0) || math.IsInf(s2, 0) {
			return math.Inf(1)
		}
		sum += math.Log(s2) + eps[t]*eps[t]/s2
	}
	return 0.5 * (sum + float64(len(eps))*math.Log(2*math.Pi))
}

// decode maps unconstrained optimizer coordinates onto the feasible region
// ω > 0, α ≥ 0, β ≥ 0, α+β < 1. ω is expressed relative to the sample variance.
func decode(x []float64, scale float64) (omega, alpha, beta float64) {
	omega = scale * math.Exp(x[0])
	if omega <= 0 {
		omega = scale * 1e-12
	}
	persistence := stationarityCap * logistic(x[1])
	share := logistic(x[2])
	return omega, persistence * share, persistence * (1 - share)
}

// encode is the inverse of decode
func encode(scale, alpha, beta float64) []float64 {
	persistence := alpha + beta
	omega := scale * (1 - persistence)
	return []float64{
		math.Log(omega / scale),
		logit(persistence / stationarityCap),
		logit(alpha / persistence),
	}
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
