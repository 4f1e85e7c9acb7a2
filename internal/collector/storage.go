package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/redis"
)

// Storage handles Redis storage operations for entity data
type Storage struct {
	redis            redis.Client
	retention        time.Duration
	maxSensorHistory int
	logger           *slog.Logger
}

// NewStorage creates a new storage handler
func NewStorage(redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Storage {
	return &Storage{
		redis:            redisClient,
		retention:        cfg.HistoryRetention,
		maxSensorHistory: cfg.MaxSensorHistory,
		logger:           logger,
	}
}

// StoreEntityData writes the latest value and appends to the history.
// Pattern:
// - state:{entity_id} (hash with state, attributes, updated_at)
// - history:{entity_id} (sorted set scored by unix ms)
func (s *Storage) StoreEntityData(ctx context.Context, msg *EntityMessage, processor *Processor) error {
	if err := s.storeLatest(ctx, msg); err != nil {
		return err
	}
	return s.storeHistory(ctx, msg, processor)
}

func (s *Storage) storeLatest(ctx context.Context, msg *EntityMessage) error {
	key := redis.EntityStateKey(msg.EntityID)

	attributes := "{}"
	if len(msg.Attributes) > 0 {
		data, err := json.Marshal(msg.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
		attributes = string(data)
	}

	fields := map[string]interface{}{
		"state":      msg.State,
		"attributes": attributes,
		"updated_at": strconv.FormatInt(msg.CollectedAt, 10),
		"timestamp":  msg.Timestamp.Format(time.RFC3339Nano),
	}
	if err := s.redis.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to store latest state: %w", err)
	}

	// A sensor that stays silent past the retention reads as unavailable
	if err := s.redis.Expire(ctx, key, s.retention); err != nil {
		s.logger.Warn("Failed to set TTL on entity state", "entity_id", msg.EntityID, "error", err)
	}
	return nil
}

func (s *Storage) storeHistory(ctx context.Context, msg *EntityMessage, processor *Processor) error {
	key := redis.EntityHistoryKey(msg.EntityID)

	member, err := processor.BuildHistoryEntry(msg)
	if err != nil {
		return err
	}

	if err := s.redis.ZAdd(ctx, key, float64(msg.CollectedAt), member); err != nil {
		return fmt.Errorf("failed to add history entry: %w", err)
	}

	// Clean entries older than the retention window
	cutoff := msg.CollectedAt - s.retention.Milliseconds()
	if err := s.redis.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)); err != nil {
		s.logger.Warn("Failed to clean old history", "entity_id", msg.EntityID, "error", err)
	}

	// Cap the set, dropping the oldest members
	if s.maxSensorHistory > 0 {
		if err := s.redis.ZRemRangeByRank(ctx, key, 0, int64(-s.maxSensorHistory-1)); err != nil {
			s.logger.Warn("Failed to cap history", "entity_id", msg.EntityID, "error", err)
		}
	}

	if err := s.redis.Expire(ctx, key, s.retention); err != nil {
		return fmt.Errorf("failed to set TTL on history: %w", err)
	}

	count, err := s.redis.ZCard(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to get history size", "entity_id", msg.EntityID, "error", err)
	} else {
		s.logger.Debug("Stored entity data",
			"entity_id", msg.EntityID,
			"state", msg.State,
			"buffer_size", count)
	}

	return nil
}
