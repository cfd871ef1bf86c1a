package sla

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
)

// CalendarSource loads a unit's calendar from primary storage.
type CalendarSource interface {
	GetCalendar(ctx context.Context, unitID string) (*domain.WorkingCalendar, error)
}

// Resolver resolves a unit's working calendar.
type Resolver interface {
	Resolve(ctx context.Context, unitID string) (*domain.WorkingCalendar, error)
}

// CachedResolver is a read-through Redis cache in front of a
// CalendarSource. Calendars are read-mostly; cache failures fall back to
// the source and are never fatal.
type CachedResolver struct {
	source CalendarSource
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResolver constructs the resolver. A nil cache client disables
// caching entirely.
func NewCachedResolver(source CalendarSource, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{source: source, cache: cache, ttl: ttl, logger: logger}
}

func calendarCacheKey(unitID string) string {
	return "sla:calendar:" + unitID
}

// Resolve returns the unit's calendar, preferring the cache.
func (r *CachedResolver) Resolve(ctx context.Context, unitID string) (*domain.WorkingCalendar, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, calendarCacheKey(unitID)).Bytes()
		if err == nil {
			var calendar domain.WorkingCalendar
			if unmarshalErr := json.Unmarshal(raw, &calendar); unmarshalErr == nil {
				return &calendar, nil
			}
			r.logger.Warn("corrupt calendar cache entry", zap.String("unit_id", unitID))
		} else if err != redis.Nil {
			r.logger.Warn("calendar cache read failed", zap.String("unit_id", unitID), zap.Error(err))
		}
	}

	calendar, err := r.source.GetCalendar(ctx, unitID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if raw, err := json.Marshal(calendar); err == nil {
			if err := r.cache.Set(ctx, calendarCacheKey(unitID), raw, r.ttl).Err(); err != nil {
				r.logger.Warn("calendar cache write failed", zap.String("unit_id", unitID), zap.Error(err))
			}
		}
	}
	return calendar, nil
}

// Invalidate drops the cached calendar after an admin reconfigures it.
func (r *CachedResolver) Invalidate(ctx context.Context, unitID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, calendarCacheKey(unitID)).Err(); err != nil {
		r.logger.Warn("calendar cache invalidation failed", zap.String("unit_id", unitID), zap.Error(err))
	}
}
