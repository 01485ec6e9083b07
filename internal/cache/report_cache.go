package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// entry 직렬화된 값 + 만료 시각
type entry struct {
	data      []byte
	expiresAt time.Time
}

// ReportCache is an in-process report cache used when Redis is disabled.
// Values are stored as JSON so callers never share memory with the cache.
// ⭐ SSOT: 프로세스 내 리포트 캐싱은 이 구조체에서만
type ReportCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *logger.Logger
	now     func() time.Time
}

// NewReportCache creates a new in-memory report cache
func NewReportCache(log *logger.Logger) *ReportCache {
	return &ReportCache{
		entries: make(map[string]entry),
		logger:  log,
		now:     time.Now,
	}
}

// Get decodes the cached value into dest; expired entries count as misses
func (c *ReportCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || !c.now().Before(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// Set stores value for ttl (ttl <= 0 is ignored)
func (c *ReportCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes one key
func (c *ReportCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// DeletePattern removes every key matching a glob ("report:AAPL:*")
func (c *ReportCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
			count++
		}
	}
	return count, nil
}

// Len returns the number of entries, expired ones included
func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// CleanExpired removes expired entries from cache
func (c *ReportCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0

	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Debug("Cleaned expired reports from cache")
	}

	return count
}

// Stats returns cache statistics
func (c *ReportCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{TotalCount: len(c.entries)}
	now := c.now()
	for _, e := range c.entries {
		if !now.Before(e.expiresAt) {
			stats.ExpiredCount++
		}
		stats.Bytes += len(e.data)
	}
	stats.FreshCount = stats.TotalCount - stats.ExpiredCount

	return stats
}

// Stats represents cache statistics
type Stats struct {
	TotalCount   int `json:"total_count"`
	FreshCount   int `json:"fresh_count"`
	ExpiredCount int `json:"expired_count"`
	Bytes        int `json:"bytes"`
}
