package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hansel67/stock-analyzer/internal/analysisconfig"
	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/internal/ensemble"
	"github.com/hansel67/stock-analyzer/internal/evaluate"
	"github.com/hansel67/stock-analyzer/internal/features"
	"github.com/hansel67/stock-analyzer/internal/returns"
	"github.com/hansel67/stock-analyzer/internal/volatility"
)

// Stage names reported to the Observer
const (
	StageReturns      = "returns"
	StageSplit        = "split"
	StageVolatility   = "volatility"
	StageFeatures     = "features"
	StageModel        = "model"
	StageEvaluate     = "evaluate"
	StageDistribution = "distribution"
)

// Observer receives per-stage timings (metrics, tracing)
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
}

// Runner 파이프라인 1회 실행기
// 실행마다 자기 데이터만 소유하므로 여러 고루틴에서 동시에 사용 가능
type Runner struct {
	cfg      *analysisconfig.Config
	base     zerolog.Logger
	log      zerolog.Logger
	observer Observer
	now      func() time.Time
}

// NewRunner creates a runner; a nil cfg uses the built-in profile
func NewRunner(cfg *analysisconfig.Config, log zerolog.Logger) *Runner {
	if cfg == nil {
		cfg = analysisconfig.Default()
	}
	return &Runner{
		cfg:  cfg,
		base: log,
		log:  log.With().Str("component", "pipeline").Logger(),
		now:  time.Now,
	}
}

// WithObserver attaches a stage observer
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// Run executes the whole analysis for one price series
func Run(series contracts.PriceSeries, cfg *analysisconfig.Config, log zerolog.Logger) (*contracts.Report, error) {
	return NewRunner(cfg, log).Run(series)
}

// Run executes returns → split → GARCH → features → ensemble → evaluation.
//
// GARCH parameters are fitted only on the returns visible to the training
// rows; the fitted recursion is then run over every return so the test rows
// get σ without refitting. Stage errors are returned as-is and no partial
// report is produced.
func (r *Runner) Run(series contracts.PriceSeries) (*contracts.Report, error) {
	start := r.now()
	log := r.log.With().Str("symbol", series.Symbol()).Int("prices", series.Len()).Logger()

	var rets contracts.ReturnSeries
	if err := r.stage(StageReturns, func() (err error) {
		rets, err = returns.Compute(series)
		return err
	}); err != nil {
		return nil, err
	}

	var train, test int
	if err := r.stage(StageSplit, func() (err error) {
		train, test, err = features.SplitPoint(features.RowCount(series.Len()), r.cfg.SplitRatio)
		return err
	}); err != nil {
		return nil, err
	}

	var (
		vol    contracts.VolatilitySeries
		params contracts.GARCHParams
	)
	if err := r.stage(StageVolatility, func() (err error) {
		est := volatility.NewEstimator(r.cfg.Volatility(), r.base)
		// 학습 라벨 price[train+1]까지의 수익률만 사용
		params, err = est.Fit(rets.Values[:train+1])
		if err != nil {
			return err
		}
		vol = contracts.VolatilitySeries{
			Dates: rets.Dates,
			Sigma: volatility.Filter(params, rets.Values),
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var fm *contracts.FeatureMatrix
	if err := r.stage(StageFeatures, func() (err error) {
		fm, err = features.Build(series, vol, r.cfg.SplitRatio)
		return err
	}); err != nil {
		return nil, err
	}

	var predicted []float64
	if err := r.stage(StageModel, func() error {
		x, y := fm.Train()
		forest, err := ensemble.Fit(x, y, r.cfg.Forest())
		if err != nil {
			return err
		}
		xt, _ := fm.Test()
		predicted = forest.Predict(xt)
		return nil
	}); err != nil {
		return nil, err
	}

	var forecast contracts.ForecastResult
	if err := r.stage(StageEvaluate, func() (err error) {
		_, actual := fm.Test()
		// row t 의 예측 대상은 t+1 시점 가격
		dates := series.Dates()[fm.TrainRows+2:]
		forecast, err = evaluate.Forecast(dates, actual, predicted)
		return err
	}); err != nil {
		return nil, err
	}

	var dist contracts.DistributionStats
	if err := r.stage(StageDistribution, func() (err error) {
		dist, err = evaluate.Distribution(rets.Values, r.cfg.HistogramBins)
		return err
	}); err != nil {
		return nil, err
	}

	hash, err := analysisconfig.Hash(r.cfg)
	if err != nil {
		return nil, err
	}

	report := &contracts.Report{
		RunID:        uuid.NewString(),
		Symbol:       series.Symbol(),
		From:         series.First(),
		To:           series.Last(),
		ConfigHash:   hash,
		Prices:       series,
		Returns:      rets,
		Volatility:   vol,
		Params:       params,
		Split:        contracts.Split{TrainRows: train, TestRows: test},
		Forecast:     forecast,
		Distribution: dist,
		CreatedAt:    r.now(),
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("train_rows", train).
		Int("test_rows", test).
		Float64("persistence", params.Persistence()).
		Float64("rmse", forecast.RMSE).
		Float64("r2", forecast.R2).
		Dur("elapsed", r.now().Sub(start)).
		Msg("Analysis completed")

	return report, nil
}

func (r *Runner) stage(name string, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	if r.observer != nil {
		r.observer.ObserveStage(name, elapsed, err)
	}
	if err != nil {
		r.log.Debug().Err(err).Str("stage", name).Dur("elapsed", elapsed).Msg("Stage failed")
	} else {
		r.log.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("Stage completed")
	}
	return err
}
