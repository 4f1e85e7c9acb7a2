package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/saaga0h/canopy/pkg/postgres"
)

const (
	zonesQuery = `
		SELECT id, name, daylight, entities, notify_enabled, notify_target, personality
		FROM zones
		ORDER BY id`

	plantsQuery = `
		SELECT id, zone_id, strain, veg_start, flower_start
		FROM plants
		WHERE zone_id = ANY($1) AND removed_at IS NULL
		ORDER BY id`
)

// PostgresRegistry reads zones and plants from the grow management database
type PostgresRegistry struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewPostgresRegistry creates a registry over an already connected client
func NewPostgresRegistry(db postgres.Client, logger *slog.Logger) *PostgresRegistry {
	return &PostgresRegistry{db: db, logger: logger}
}

// Zones returns all configured zones
func (r *PostgresRegistry) Zones(ctx context.Context) ([]Zone, error) {
	rows, err := r.db.Query(ctx, zonesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var (
			z           Zone
			name        sql.NullString
			entities    []byte
			target      sql.NullString
			personality sql.NullString
		)
		if err := rows.Scan(&z.ID, &name, &z.Daylight, &entities, &z.Notifications.Enabled, &target, &personality); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		z.Name = name.String
		z.Notifications.Target = target.String
		z.Notifications.Personality = personality.String

		if len(entities) > 0 {
			if err := json.Unmarshal(entities, &z.Entities); err != nil {
				r.logger.Warn("Ignoring zone with unreadable entities", "zone", z.ID, "error", err)
				continue
			}
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate zones: %w", err)
	}

	return zones, nil
}

// Plants returns the plants assigned to zoneID. Dry and cure aliases are
// resolved so plants filed under any alias are counted.
func (r *PostgresRegistry) Plants(ctx context.Context, zoneID string) ([]Plant, error) {
	ids := []string{zoneID}
	if IsPostHarvest(zoneID) {
		canonical := CanonicalZone(zoneID)
		for alias, c := range zoneAliases {
			if c == canonical && alias != zoneID {
				ids = append(ids, alias)
			}
		}
	}

	rows, err := r.db.Query(ctx, plantsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query plants for zone %s: %w", zoneID, err)
	}
	defer rows.Close()

	var plants []Plant
	for rows.Next() {
		var (
			p      Plant
			strain sql.NullString
			veg    sql.NullTime
			flower sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Zone, &strain, &veg, &flower); err != nil {
			return nil, fmt.Errorf("failed to scan plant: %w", err)
		}
		p.Strain = strain.String
		if veg.Valid {
			t := veg.Time
			p.VegStart = &t
		}
		if flower.Valid {
			t := flower.Time
			p.FlowerStart = &t
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plants: %w", err)
	}

	return plants, nil
}
