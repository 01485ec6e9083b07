package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/internal/pipeline"
	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// Fetcher 원격 시세 조회 (yahoo.Client)
type Fetcher interface {
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error)
}

// Saver 가격 저장 (store.PriceRepository)
type Saver interface {
	SaveSeries(ctx context.Context, series contracts.PriceSeries, source string) (int, error)
}

// Invalidator 리포트 캐시 무효화 (redis.Cache)
type Invalidator interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Warmer 리포트 재생성 (pipeline.Analyzer)
type Warmer interface {
	Analyze(ctx context.Context, symbol string) (*contracts.Report, error)
}

// RefreshConfig 갱신 작업 설정
type RefreshConfig struct {
	Watchlist     []string
	LookbackYears int
	Schedule      string
}

// RefreshJob refreshes stored price history for the watchlist,
// drops cached reports of refreshed symbols and optionally rebuilds them.
// ⭐ SSOT: 관심 종목 가격 갱신은 이 Job에서만
type RefreshJob struct {
	fetcher     Fetcher
	saver       Saver
	invalidator Invalidator
	warmer      Warmer
	config      RefreshConfig
	logger      *logger.Logger
	now         func() time.Time
}

// NewRefreshJob creates a new refresh job; invalidator and warmer may be nil
func NewRefreshJob(fetcher Fetcher, saver Saver, invalidator Invalidator, warmer Warmer, cfg RefreshConfig, log *logger.Logger) *RefreshJob {
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = 10
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 30 22 * * 1-5"
	}
	return &RefreshJob{
		fetcher:     fetcher,
		saver:       saver,
		invalidator: invalidator,
		warmer:      warmer,
		config:      cfg,
		logger:      log,
		now:         time.Now,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "price_refresh"
}

// Schedule returns the cron schedule (기본: 평일 22:30, 미국장 마감 후)
func (j *RefreshJob) Schedule() string {
	return j.config.Schedule
}

// Run executes the refresh. Symbols fail independently; the run fails
// only when no symbol could be refreshed.
func (j *RefreshJob) Run(ctx context.Context) error {
	if len(j.config.Watchlist) == 0 {
		j.logger.Debug("Watchlist is empty, nothing to refresh")
		return nil
	}

	to := j.now().UTC()
	from := to.AddDate(-j.config.LookbackYears, 0, 0)

	var errs []error
	refreshed := 0
	for _, raw := range j.config.Watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}

		symbol := pipeline.NormalizeSymbol(raw)
		if err := j.refreshSymbol(ctx, symbol, from, to); err != nil {
			j.logger.WithError(err).WithField("symbol", symbol).Warn("Price refresh failed")
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		refreshed++
	}

	j.logger.WithFields(map[string]interface{}{
		"refreshed": refreshed,
		"failed":    len(errs),
	}).Info("Price refresh completed")

	if refreshed == 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (j *RefreshJob) refreshSymbol(ctx context.Context, symbol string, from, to time.Time) error {
	series, err := j.fetcher.FetchPrices(ctx, symbol, from, to)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	saved, err := j.saver.SaveSeries(ctx, series, "scheduler")
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if j.invalidator != nil {
		removed, err := j.invalidator.DeletePattern(ctx, pipeline.CacheKeyPattern(symbol))
		if err != nil {
			// 캐시 키에 날짜가 포함되어 있어 다음 날이면 자연 만료
			j.logger.WithError(err).WithField("symbol", symbol).Warn("Report cache invalidation failed")
		} else if removed > 0 {
			j.logger.WithFields(map[string]interface{}{
				"symbol":  symbol,
				"removed": removed,
			}).Debug("Cached reports invalidated")
		}
	}

	if j.warmer != nil {
		if _, err := j.warmer.Analyze(ctx, symbol); err != nil {
			j.logger.WithError(err).WithField("symbol", symbol).Warn("Report warm-up failed")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"saved":  saved,
	}).Debug("Prices refreshed")
	return nil
}
