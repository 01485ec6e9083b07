package jobs

import (
	"context"

	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// Cleaner 만료 항목 정리 (cache.ReportCache)
type Cleaner interface {
	CleanExpired() int
}

// CacheCleanupJob drops expired reports from the in-process cache
type CacheCleanupJob struct {
	cache  Cleaner
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache Cleaner, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  cache,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */10 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	count := j.cache.CleanExpired()

	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}

	return nil
}
