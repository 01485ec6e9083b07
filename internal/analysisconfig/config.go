package analysisconfig

import (
	"github.com/hansel67/stock-analyzer/internal/ensemble"
	"github.com/hansel67/stock-analyzer/internal/volatility"
	"github.com/hansel67/stock-analyzer/pkg/config"
)

// Config 분석 프로필 (YAML)
// ⭐ SSOT: 파이프라인 튜닝 값은 모두 여기서만 정의
type Config struct {
	LookbackYears int            `yaml:"lookback_years" json:"lookback_years" default:"10" validate:"gte=1,lte=50"`
	SplitRatio    float64        `yaml:"split_ratio" json:"split_ratio" default:"0.8" validate:"gt=0,lt=1"`
	HistogramBins int            `yaml:"histogram_bins" json:"histogram_bins" default:"30" validate:"gte=2,lte=1000"`
	GARCH         GARCHConfig    `yaml:"garch" json:"garch"`
	Ensemble      EnsembleConfig `yaml:"ensemble" json:"ensemble"`
}

// GARCHConfig 변동성 추정 설정
type GARCHConfig struct {
	MinObservations int     `yaml:"min_observations" json:"min_observations" default:"5" validate:"gte=2"`
	MaxIterations   int     `yaml:"max_iterations" json:"max_iterations" default:"2000" validate:"gte=1"`
	Tolerance       float64 `yaml:"tolerance" json:"tolerance" default:"1e-10" validate:"gt=0"`
	StallIterations int     `yaml:"stall_iterations" json:"stall_iterations" default:"100" validate:"gte=1"`
}

// EnsembleConfig 트리 앙상블 설정
type EnsembleConfig struct {
	Trees           int   `yaml:"trees" json:"trees" default:"100" validate:"gte=1,lte=10000"`
	MaxDepth        int   `yaml:"max_depth" json:"max_depth" validate:"gte=0"`
	MinSamplesSplit int   `yaml:"min_samples_split" json:"min_samples_split" default:"2" validate:"gte=2"`
	MinSamplesLeaf  int   `yaml:"min_samples_leaf" json:"min_samples_leaf" default:"1" validate:"gte=1"`
	MaxFeatures     int   `yaml:"max_features" json:"max_features" validate:"gte=0"`
	Seed            int64 `yaml:"seed" json:"seed" default:"42"`

	// Workers 결과에 영향이 없으므로 해시에서 제외
	Workers int `yaml:"workers" json:"-" validate:"gte=0"`
}

// Volatility converts the profile into estimator settings
func (c *Config) Volatility() volatility.Config {
	return volatility.Config{
		MinObservations: c.GARCH.MinObservations,
		MaxIterations:   c.GARCH.MaxIterations,
		Tolerance:       c.GARCH.Tolerance,
		StallIterations: c.GARCH.StallIterations,
	}
}

// Forest converts the profile into ensemble settings
func (c *Config) Forest() ensemble.Config {
	return ensemble.Config{
		Trees:           c.Ensemble.Trees,
		MaxDepth:        c.Ensemble.MaxDepth,
		MinSamplesSplit: c.Ensemble.MinSamplesSplit,
		MinSamplesLeaf:  c.Ensemble.MinSamplesLeaf,
		MaxFeatures:     c.Ensemble.MaxFeatures,
		Seed:            c.Ensemble.Seed,
		Workers:         c.Ensemble.Workers,
	}
}

// ApplyEnv overlays the env-level overrides from the application config.
// Zero values mean "not set" and leave the profile untouched.
func (c *Config) ApplyEnv(app *config.Config) {
	if app == nil {
		return
	}
	a := app.Analysis
	if a.LookbackYears > 0 {
		c.LookbackYears = a.LookbackYears
	}
	if a.Trees > 0 {
		c.Ensemble.Trees = a.Trees
	}
	if a.SplitRatio > 0 {
		c.SplitRatio = a.SplitRatio
	}
	if a.Seed != 0 {
		c.Ensemble.Seed = a.Seed
	}
}
