package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants
const (
	// Raw entity values (input)
	TopicRawEntities = "canopy/raw/+"

	// Zone registry change notifications (input)
	TopicRegistryChanges = "canopy/registry/+"

	// Inferred signal states (output, retained)
	TopicStateBase = "canopy/state"

	// Alerts (output)
	TopicAlertBase = "canopy/alert"
)

// RawEntityTopic constructs the raw value topic for an entity
// Pattern: canopy/raw/{entity_id}
func RawEntityTopic(entityID string) string {
	return fmt.Sprintf("canopy/raw/%s", entityID)
}

// RegistryTopic constructs the registry change topic for a zone
// Pattern: canopy/registry/{zone}
func RegistryTopic(zone string) string {
	return fmt.Sprintf("canopy/registry/%s", zone)
}

// SignalStateTopic constructs the state output topic for a zone signal
// Pattern: canopy/state/{zone}/{signal}
func SignalStateTopic(zone, signal string) string {
	return fmt.Sprintf("%s/%s/%s", TopicStateBase, zone, signal)
}

// AlertTopic constructs the alert output topic for a zone signal
// Pattern: canopy/alert/{zone}/{signal}
func AlertTopic(zone, signal string) string {
	return fmt.Sprintf("%s/%s/%s", TopicAlertBase, zone, signal)
}

// LastSegment returns the final path segment of a topic,
// e.g. the entity id of a raw topic or the zone of a registry topic.
func LastSegment(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
