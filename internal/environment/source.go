package environment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/saaga0h/canopy/pkg/redis"
)

// ErrNotFound is returned when no value has been recorded for an entity
var ErrNotFound = errors.New("entity value not found")

// Value is the latest recorded state of an entity
type Value struct {
	State      string
	Attributes map[string]interface{}
}

// Available reports whether the state carries a real value
func (v Value) Available() bool {
	switch strings.ToLower(v.State) {
	case "", "unknown", "unavailable", "none":
		return false
	}
	return true
}

// Float parses the state as a number
func (v Value) Float() (float64, bool) {
	if !v.Available() {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.State, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Attribute returns a numeric attribute
func (v Value) Attribute(name string) (float64, bool) {
	switch a := v.Attributes[name].(type) {
	case float64:
		return a, true
	case int:
		return float64(a), true
	case string:
		f, err := strconv.ParseFloat(a, 64)
		return f, err == nil
	}
	return 0, false
}

// ValueSource provides the latest value of an entity
type ValueSource interface {
	Get(ctx context.Context, entityID string) (Value, error)
}

// RedisSource reads latest values written by the collector
type RedisSource struct {
	redis redis.Client
}

// NewRedisSource creates a value source over the collector's state hashes
func NewRedisSource(redisClient redis.Client) *RedisSource {
	return &RedisSource{redis: redisClient}
}

// Get returns the latest value of entityID
func (s *RedisSource) Get(ctx context.Context, entityID string) (Value, error) {
	fields, err := s.redis.HGetAll(ctx, redis.EntityStateKey(entityID))
	if err != nil {
		return Value{}, fmt.Errorf("failed to read state of %s: %w", entityID, err)
	}
	state, ok := fields["state"]
	if !ok {
		return Value{}, ErrNotFound
	}

	v := Value{State: state}
	if raw := fields["attributes"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &v.Attributes); err != nil {
			return Value{}, fmt.Errorf("failed to parse attributes of %s: %w", entityID, err)
		}
	}
	return v, nil
}
