package tariff

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"homewatt/internal/db"
)

// DefaultFallbackRate applies when a home has no tariff row or the store is
// unreachable (currency units per kWh)
const DefaultFallbackRate = 0.15

const cacheTTL = time.Hour

// Source resolves per-home flat energy rates with a Redis cache in front of
// Postgres. Lookup failures are transient infrastructure failures: the
// fallback rate is used and execution proceeds.
type Source struct {
	db       *db.DB
	redis    *redis.Client
	fallback float64
}

// NewSource creates a tariff source; fallback <= 0 selects the default rate
func NewSource(database *db.DB, redisClient *redis.Client, fallback float64) *Source {
	if fallback <= 0 {
		fallback = DefaultFallbackRate
	}
	return &Source{db: database, redis: redisClient, fallback: fallback}
}

func cacheKey(homeID string) string {
	return fmt.Sprintf("tariff:%s", homeID)
}

// FlatRate returns the home's flat rate, or the fallback when unavailable
func (s *Source) FlatRate(ctx context.Context, homeID string) float64 {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey(homeID)).Result(); err == nil {
			if rate, err := strconv.ParseFloat(cached, 64); err == nil {
				return rate
			}
		}
	}

	rate, err := s.db.GetTariffRate(ctx, homeID)
	if err != nil {
		log.Printf("TARIFF: lookup failed for home %s, using fallback %.2f: %v", homeID, s.fallback, err)
		return s.fallback
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey(homeID), strconv.FormatFloat(rate, 'f', -1, 64), cacheTTL).Err(); err != nil {
			log.Printf("TARIFF: cache write failed for home %s: %v", homeID, err)
		}
	}
	return rate
}
