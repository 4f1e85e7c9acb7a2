package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saaga0h/canopy/pkg/redis"
)

const (
	defaultHistoryLength = 100
	historyTTL           = 7 * 24 * time.Hour
)

// History keeps the most recent alerts per zone in a Redis list
type History struct {
	client redis.Client
	max    int64
}

// NewHistory creates a history keeping up to max alerts per zone
func NewHistory(client redis.Client, max int64) *History {
	if max <= 0 {
		max = defaultHistoryLength
	}
	return &History{client: client, max: max}
}

func (h *History) Name() string { return "history" }

// Send records the alert, newest first
func (h *History) Send(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	key := redis.ZoneAlertsKey(a.Zone)
	if err := h.client.LPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	if err := h.client.LTrim(ctx, key, 0, h.max-1); err != nil {
		return fmt.Errorf("failed to trim alert history: %w", err)
	}
	if err := h.client.Expire(ctx, key, historyTTL); err != nil {
		return fmt.Errorf("failed to set alert history TTL: %w", err)
	}
	return nil
}

// Recent returns up to n alerts for zone, newest first. Entries that fail
// to decode are skipped.
func (h *History) Recent(ctx context.Context, zone string, n int64) ([]Alert, error) {
	if n <= 0 || n > h.max {
		n = h.max
	}

	items, err := h.client.LRange(ctx, redis.ZoneAlertsKey(zone), 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read alert history: %w", err)
	}

	alerts := make([]Alert, 0, len(items))
	for _, item := range items {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
