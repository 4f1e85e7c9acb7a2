package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Processor handles parsing of raw entity messages
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
		now:    time.Now,
	}
}

// EntityMessage is a parsed entity state update
type EntityMessage struct {
	EntityID      string
	State         string
	Attributes    map[string]interface{}
	OriginalTopic string
	Timestamp     time.Time
	CollectedAt   int64 // Unix milliseconds
}

// HistoryEntry is one member of an entity history sorted set
type HistoryEntry struct {
	State       string `json:"state"`
	CollectedAt int64  `json:"collected_at"`
}

// ParseMessage parses a message published on canopy/raw/{entity_id}.
// The payload is {"state": ..., "attributes": {...}, "timestamp": "..."},
// optionally wrapped in {"data": {...}}.
func (p *Processor) ParseMessage(topic string, payload []byte) (*EntityMessage, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] == "" {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, fmt.Errorf("invalid topic format: %s (expected canopy/raw/{entity_id})", topic)
	}
	entityID := parts[2]

	var rawData map[string]interface{}
	if err := json.Unmarshal(payload, &rawData); err != nil {
		p.logger.Error("Failed to parse JSON payload", "topic", topic, "error", err)
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	data, ok := rawData["data"].(map[string]interface{})
	if !ok {
		data = rawData
	}

	now := p.now()
	msg := &EntityMessage{
		EntityID:      entityID,
		State:         stateString(data["state"]),
		OriginalTopic: topic,
		Timestamp:     now.UTC(),
		CollectedAt:   now.UnixMilli(),
	}

	if attrs, ok := data["attributes"].(map[string]interface{}); ok {
		msg.Attributes = attrs
	}

	// Source timestamps are kept for reference but history is scored by
	// arrival so a skewed sensor clock cannot reorder samples
	if ts, ok := data["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.Timestamp = parsed.UTC()
		} else {
			p.logger.Debug("Ignoring unparsable timestamp", "topic", topic, "timestamp", ts)
		}
	}

	p.logger.Debug("Parsed entity message",
		"entity_id", entityID,
		"state", msg.State)

	return msg, nil
}

// BuildHistoryEntry converts a message to its history sorted set member
func (p *Processor) BuildHistoryEntry(msg *EntityMessage) ([]byte, error) {
	data, err := json.Marshal(HistoryEntry{State: msg.State, CollectedAt: msg.CollectedAt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return data, nil
}

// stateString normalizes the JSON state value to the string form used by
// the value store
func stateString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		if s {
			return "on"
		}
		return "off"
	case nil:
		return "unknown"
	default:
		return fmt.Sprint(s)
	}
}
