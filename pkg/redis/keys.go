package redis

import "fmt"

// Key construction helpers

// EntityStateKey returns the key for the latest value of an entity (hash)
// Pattern: state:{entity_id}
func EntityStateKey(entityID string) string {
	return fmt.Sprintf("state:%s", entityID)
}

// EntityHistoryKey returns the key for the value history of an entity (sorted set scored by unix ms)
// Pattern: history:{entity_id}
func EntityHistoryKey(entityID string) string {
	return fmt.Sprintf("history:%s", entityID)
}

// ZoneAlertsKey returns the key for recent alerts in a zone (list, newest first)
// Pattern: alerts:{zone}
func ZoneAlertsKey(zone string) string {
	return fmt.Sprintf("alerts:%s", zone)
}
