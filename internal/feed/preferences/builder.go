// internal/feed/preferences/builder.go
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	apperrors "chorehero-feed/internal/common/errors"
	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/common/metrics"
	"chorehero-feed/internal/models"

	"github.com/redis/go-redis/v9"
)

// Reader is the slice of the store the profile builder needs.
type Reader interface {
	BookingHistory(ctx context.Context, userID string, limit int) ([]models.BookingRecord, error)
	CustomerProfile(ctx context.Context, userID string) (*models.CustomerProfile, error)
}

// Builder derives a viewer's preference profile from booking history, with a
// Redis cache in front of the reads. Build never fails: read errors degrade
// to an empty profile, since the local ranking path scores neutrally without
// one.
type Builder struct {
	config *Config
	reader Reader
	redis  *redis.Client
	logger logger.Logger
}

func NewBuilder(config *Config, reader Reader, rdb *redis.Client, log logger.Logger) *Builder {
	return &Builder{
		config: config,
		reader: reader,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"component": "preferences"}),
	}
}

func cacheKey(userID string) string {
	return "feed:prefs:" + userID
}

// Build returns the viewer's preference profile: up to 3 most frequently
// booked service types (ties broken by recency order), total booking count,
// and the profile budget if one is stored.
func (b *Builder) Build(ctx context.Context, userID string) *models.PreferenceProfile {
	if b.redis != nil {
		val, err := b.redis.Get(ctx, cacheKey(userID)).Result()
		switch {
		case err == nil:
			var profile models.PreferenceProfile
			if err := json.Unmarshal([]byte(val), &profile); err == nil {
				return &profile
			}
		case !errors.Is(err, redis.Nil):
			// A real cache failure, not a miss. Log it and rebuild.
			cacheErr := apperrors.NewCacheReadError(err)
			metrics.FeedReadFailures.WithLabelValues("prefs_cache_read").Inc()
			b.logger.Warn("preference cache read failed", map[string]interface{}{
				"userId":    userID,
				"code":      string(cacheErr.Code),
				"retryable": cacheErr.Retryable,
				"error":     cacheErr.Error(),
			})
		}
	}

	profile := &models.PreferenceProfile{}

	history, err := b.reader.BookingHistory(ctx, userID, b.config.HistoryLimit)
	if err != nil {
		b.logger.Warn("failed to fetch booking history", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		history = nil
	}
	profile.BookingCount = len(history)
	profile.PreferredServices = topServices(history, b.config.MaxPreferred)

	customer, err := b.reader.CustomerProfile(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to fetch customer profile", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	} else if customer != nil {
		profile.Budget = customer.Budget
	}

	if b.redis != nil {
		if data, err := json.Marshal(profile); err == nil {
			b.redis.Set(ctx, cacheKey(userID), data, b.config.CacheTTL)
		}
	}

	return profile
}

// Invalidate drops a viewer's cached profile, for callers reacting to a new
// booking.
func (b *Builder) Invalidate(ctx context.Context, userID string) {
	if b.redis != nil {
		b.redis.Del(ctx, cacheKey(userID))
	}
}

// topServices ranks service types by booking frequency. History arrives
// newest first, so on equal counts the more recently booked service wins.
func topServices(history []models.BookingRecord, max int) []string {
	if len(history) == 0 {
		return []string{}
	}

	type serviceCount struct {
		service  string
		count    int
		firstIdx int
	}

	counts := make(map[string]*serviceCount)
	order := make([]*serviceCount, 0)
	for i, booking := range history {
		if booking.ServiceType == "" {
			continue
		}
		if sc, ok := counts[booking.ServiceType]; ok {
			sc.count++
			continue
		}
		sc := &serviceCount{service: booking.ServiceType, count: 1, firstIdx: i}
		counts[booking.ServiceType] = sc
		order = append(order, sc)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].firstIdx < order[j].firstIdx
	})

	if len(order) > max {
		order = order[:max]
	}
	out := make([]string, len(order))
	for i, sc := range order {
		out[i] = sc.service
	}
	return out
}
