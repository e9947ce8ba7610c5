package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

const (
	cacheKeyStandings = "exams:standings"
	cacheKeyDashboard = "dashboard:month:%d"

	cachePatternExams     = "exams:*"
	cachePatternDashboard = "dashboard:*"
)

func dashboardCacheKey(monthIndex int) string {
	return fmt.Sprintf(cacheKeyDashboard, monthIndex)
}

// CacheRepository stores JSON encoded read models.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the standings and dashboard read models. A nil
// *CacheService behaves as a disabled cache.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes key into dest and reports whether it was present. A miss is
// not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
}

// Set stores value under key; ttl <= 0 uses the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", pattern, err)
	}
	return nil
}

// InvalidateReadModels drops cached standings or dashboards after a ledger
// write. The write has already been persisted, so failures are only logged.
func (s *CacheService) InvalidateReadModels(ctx context.Context, patterns ...string) {
	if !s.Enabled() {
		return
	}
	for _, pattern := range patterns {
		if err := s.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate read model", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// readThrough serves key from cache or computes, stores and returns a fresh
// value. A failing cache read falls through to load.
func readThrough[T any](ctx context.Context, cache *CacheService, key string, ttl time.Duration, load func() (T, error)) (T, bool, error) {
	var cached T
	hit, err := cache.Get(ctx, key, &cached)
	if err != nil {
		cache.logger.Warn("read model cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return cached, true, nil
	}

	fresh, err := load()
	if err != nil {
		var zero T
		return zero, false, err
	}
	if err := cache.Set(ctx, key, fresh, ttl); err != nil {
		cache.logger.Warn("read model cache write failed", zap.String("key", key), zap.Error(err))
	}
	return fresh, false, nil
}
