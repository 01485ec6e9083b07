package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hansel67/stock-analyzer/internal/analysisconfig"
	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// PriceSource 가격 이력 조회 (yahoo.Client, store.Source)
type PriceSource interface {
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error)
}

// ReportCache 리포트 메모이제이션 (redis.Cache, cache.ReportCache)
type ReportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheObserver is notified about cache lookups (metrics)
type CacheObserver interface {
	ObserveCache(hit bool)
}

// Analyzer fetches a symbol's history and runs the pipeline on it,
// optionally memoising reports per (symbol, window, profile, day).
type Analyzer struct {
	source   PriceSource
	cache    ReportCache
	cacheTTL time.Duration
	cfg      *analysisconfig.Config
	hash     string
	log      zerolog.Logger
	observer Observer
	now      func() time.Time
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithCache enables report memoisation
func WithCache(cache ReportCache, ttl time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.cache = cache
		a.cacheTTL = ttl
	}
}

// WithStageObserver reports stage timings of every run
func WithStageObserver(o Observer) AnalyzerOption {
	return func(a *Analyzer) { a.observer = o }
}

// WithClock overrides the clock used for the lookback window
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(source PriceSource, cfg *analysisconfig.Config, log zerolog.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	if cfg == nil {
		cfg = analysisconfig.Default()
	}
	hash, err := analysisconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash profile: %w", err)
	}

	a := &Analyzer{
		source: source,
		cfg:    cfg,
		hash:   hash,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ConfigHash returns the hash of the active profile
func (a *Analyzer) ConfigHash() string { return a.hash }

// Analyze runs the pipeline over the last LookbackYears of symbol.
// Retrieval failures are reported as ErrDataUnavailable; invalid source data
// and pipeline errors pass through unchanged. Cache failures never fail the request.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*contracts.Report, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", contracts.ErrDataUnavailable)
	}

	to := a.now()
	from := to.AddDate(-a.cfg.LookbackYears, 0, 0)
	key := CacheKey(symbol, a.cfg.LookbackYears, a.hash, to)

	if a.cache != nil {
		var cached contracts.Report
		found, err := a.cache.Get(ctx, key, &cached)
		if err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
		}
		a.observeCache(found && err == nil)
		if found && err == nil {
			a.log.Debug().Str("symbol", symbol).Str("run_id", cached.RunID).Msg("Report served from cache")
			return &cached, nil
		}
	}

	series, err := a.source.FetchPrices(ctx, symbol, from, to)
	if err != nil {
		// 입력 데이터 오류(0 이하 가격 등)는 그대로 전달
		if errors.Is(err, contracts.ErrDataUnavailable) || contracts.IsInputError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: no prices for %s", contracts.ErrDataUnavailable, symbol)
	}

	runner := NewRunner(a.cfg, a.log)
	if a.observer != nil {
		runner.WithObserver(a.observer)
	}
	report, err := runner.Run(series)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, report, a.cacheTTL); err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("Report cache write failed")
		}
	}
	return report, nil
}

func (a *Analyzer) observeCache(hit bool) {
	if co, ok := a.observer.(CacheObserver); ok {
		co.ObserveCache(hit)
	}
}

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CacheKey report:{symbol}:{years}y:{configHash}:{yyyy-mm-dd}
func CacheKey(symbol string, years int, configHash string, day time.Time) string {
	return fmt.Sprintf("report:%s:%dy:%s:%s", symbol, years, configHash, day.Format("2006-01-02"))
}

// CacheKeyPattern matches every cached report of symbol
func CacheKeyPattern(symbol string) string {
	return fmt.Sprintf("report:%s:*", symbol)
}
