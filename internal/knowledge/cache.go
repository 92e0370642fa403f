package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const (
	cacheKeyPrefix  = "nlq:patterns:"
	generationKey   = cacheKeyPrefix + "gen"
	DefaultCacheTTL = 5 * time.Minute
)

// CachedRepository serves QueryPatterns from Redis. Every upsert bumps a
// generation counter, which retires all cached entries at once.
type CachedRepository struct {
	Repository
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedRepository{
		Repository: inner,
		redis:      client,
		ttl:        ttl,
		log:        log.With(map[string]interface{}{"component": "pattern_cache"}),
	}
}

func (c *CachedRepository) UpsertPattern(ctx context.Context, u PatternUpdate) (models.KnowledgePattern, error) {
	p, err := c.Repository.UpsertPattern(ctx, u)
	if err != nil {
		return p, err
	}
	if err := c.redis.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("Pattern cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
	return p, nil
}

func (c *CachedRepository) QueryPatterns(ctx context.Context, text string, limit int) ([]models.KnowledgePattern, error) {
	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		metrics.PatternCacheLookups.WithLabelValues("error").Inc()
		c.log.Warn("Pattern cache unavailable", map[string]interface{}{"error": err.Error()})
		return c.Repository.QueryPatterns(ctx, text, limit)
	}

	key := fmt.Sprintf("%s%d:%d:%s", cacheKeyPrefix, gen, limit, text)
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var cached []models.KnowledgePattern
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			metrics.PatternCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}
	metrics.PatternCacheLookups.WithLabelValues("miss").Inc()

	patterns, err := c.Repository.QueryPatterns(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	data, _ := json.Marshal(patterns)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("Pattern cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return patterns, nil
}
