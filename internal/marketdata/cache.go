package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/internal/model"
)

// HistoryCache is a Redis read-through cache in front of a HistoryProvider.
// Daily bars are immutable within a trading day, so entries are keyed by
// symbol, lookback and calendar date and expire after the configured TTL.
// Cache errors degrade to a direct fetch; they never fail the lookup.
type HistoryCache struct {
	rdb    *redis.Client
	next   HistoryProvider
	ttl    time.Duration
	logger zerolog.Logger
}

// NewHistoryCache wraps next with a Redis cache.
func NewHistoryCache(rdb *redis.Client, ttl time.Duration, next HistoryProvider) *HistoryCache {
	return &HistoryCache{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		logger: log.With().Str("component", "history_cache").Logger(),
	}
}

// History returns the cached bars for the symbol or fetches and stores them.
func (c *HistoryCache) History(ctx context.Context, symbol string, lookbackDays int) ([]model.PricePoint, error) {
	key := fmt.Sprintf("stockscan:history:%s:%d:%s", symbol, lookbackDays, time.Now().Format(dateLayout))

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var points []model.PricePoint
		if err := json.Unmarshal(raw, &points); err == nil {
			c.logger.Debug().Str("symbol", symbol).Msg("History cache hit")
			return points, nil
		}
		c.logger.Warn().Str("key", key).Msg("Dropping undecodable cache entry")
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Msg("Cache read failed, falling back to fetch")
	}

	points, err := c.next.History(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(points); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("Cache write failed")
		}
	}

	return points, nil
}
