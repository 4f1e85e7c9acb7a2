package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/canopy/pkg/redis"
)

// HistoryStore returns the samples recorded for an entity within [from, to]
type HistoryStore interface {
	Samples(ctx context.Context, entityID string, from, to time.Time) ([]Sample, error)
}

// historyEntry mirrors the JSON members the collector writes
type historyEntry struct {
	State       string `json:"state"`
	CollectedAt int64  `json:"collected_at"`
}

// RedisHistory reads entity history sorted sets written by the collector
type RedisHistory struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewRedisHistory creates a history store over Redis
func NewRedisHistory(redisClient redis.Client, logger *slog.Logger) *RedisHistory {
	return &RedisHistory{redis: redisClient, logger: logger}
}

// Samples returns samples ordered oldest first
func (h *RedisHistory) Samples(ctx context.Context, entityID string, from, to time.Time) ([]Sample, error) {
	key := redis.EntityHistoryKey(entityID)

	values, err := h.redis.ZRangeByScoreWithScores(ctx, key, float64(from.UnixMilli()), float64(to.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("Redis query failed: %w", err)
	}

	samples := make([]Sample, 0, len(values))
	for _, item := range values {
		var entry historyEntry
		if err := json.Unmarshal([]byte(item.Member), &entry); err != nil {
			h.logger.Warn("Failed to parse history entry", "error", err, "key", key)
			continue
		}

		s := Sample{Timestamp: time.UnixMilli(int64(item.Score))}
		if v, err := strconv.ParseFloat(entry.State, 64); err == nil {
			s.Value = v
			s.Valid = true
		}
		samples = append(samples, s)
	}

	return samples, nil
}
