package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/hansel67/stock-analyzer/internal/analysisconfig"
	"github.com/hansel67/stock-analyzer/internal/cache"
	"github.com/hansel67/stock-analyzer/internal/external/yahoo"
	"github.com/hansel67/stock-analyzer/internal/pipeline"
	"github.com/hansel67/stock-analyzer/internal/store"
	"github.com/hansel67/stock-analyzer/pkg/config"
	"github.com/hansel67/stock-analyzer/pkg/database"
	"github.com/hansel67/stock-analyzer/pkg/httputil"
	"github.com/hansel67/stock-analyzer/pkg/logger"
	"github.com/hansel67/stock-analyzer/pkg/metrics"
	"github.com/hansel67/stock-analyzer/pkg/redis"
)

// yearsOverride --years 플래그 (0 = 프로필 값 사용)
var yearsOverride int

// reportStore pipeline.ReportCache + 무효화
type reportStore interface {
	pipeline.ReportCache
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// app 커맨드 공용 의존성 묶음
// ⭐ SSOT: 의존성 조립은 newApp에서만
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	profile *analysisconfig.Config
	metrics *metrics.Recorder

	db    *database.DB           // DATABASE_URL 없으면 nil
	repo  *store.PriceRepository // db가 있을 때만
	redis *redis.Client

	// reports 리포트 캐시: Redis 또는 프로세스 내 메모리
	reports  reportStore
	memCache *cache.ReportCache // Redis 비활성 시에만

	yahoo    *yahoo.Client
	source   pipeline.PriceSource
	analyzer *pipeline.Analyzer
}

// loadBase 설정 + 로거 + 분석 프로필 (외부 연결 없음)
func loadBase() (*config.Config, *logger.Logger, *analysisconfig.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	profile, err := loadProfile(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, profile, nil
}

// loadProfile resolves --profile, then ANALYSIS_PROFILE, then the built-in defaults,
// and overlays the env-level overrides.
func loadProfile(cfg *config.Config) (*analysisconfig.Config, error) {
	path := profilePath
	if path == "" {
		path = cfg.Analysis.ProfilePath
	}

	profile := analysisconfig.Default()
	if path != "" {
		loaded, _, err := analysisconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load profile %s: %w", path, err)
		}
		profile = loaded
	}

	profile.ApplyEnv(cfg)
	if yearsOverride > 0 {
		profile.LookbackYears = yearsOverride
	}
	if err := analysisconfig.Validate(profile); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return profile, nil
}

// newApp connects every optional backend that is configured
func newApp(ctx context.Context) (*app, error) {
	cfg, log, profile, err := loadBase()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		profile: profile,
		metrics: metrics.New(),
	}

	// 1. Redis (캐시 + 공용 레이트 리밋)
	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		a.redis = redis.Disabled()
	}
	if a.redis.Enabled() {
		a.reports = redis.NewCache(a.redis, redis.KeyPrefix)
	} else {
		a.memCache = cache.NewReportCache(log)
		a.reports = a.memCache
	}

	// 2. HTTP client → chart API
	httpClient := httputil.New(cfg, log).
		WithCircuitBreaker("marketdata", 5, 30*time.Second)
	if a.redis.Enabled() {
		limiter := redis.NewRateLimiter(a.redis, redis.KeyPrefix)
		httpClient.WithThrottle(limiter.Throttle(redis.MarketDataRateLimit(cfg.MarketData.RequestsPerSecond)))
	}
	a.yahoo = yahoo.NewClient(httpClient, log, cfg.MarketData.BaseURL)
	a.source = a.yahoo

	// 3. PostgreSQL (선택): 저장소 경유 read-through
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.repo = store.NewPriceRepository(db.Pool)
		if err := a.repo.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate price store: %w", err)
		}
		a.source = store.NewSource(a.repo, a.yahoo, log.Component("store"))
	}

	// 4. Analyzer
	opts := []pipeline.AnalyzerOption{
		pipeline.WithStageObserver(a.metrics),
		pipeline.WithCache(a.reports, cfg.CacheTTL),
	}
	a.analyzer, err = pipeline.NewAnalyzer(a.source, profile, log.Component("pipeline"), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"database":    a.db != nil,
		"redis":       a.redis.Enabled(),
		"config_hash": a.analyzer.ConfigHash(),
	}).Debug("Application initialized")

	return a, nil
}

// Close releases every connection
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
