package postgres

import (
	"context"
	"database/sql"
)

// Client is the read-only database surface used by the zone registry
type Client interface {
	// Connect opens the pool and verifies connectivity
	Connect(ctx context.Context) error

	// Disconnect closes the pool
	Disconnect() error

	// Query executes a query that returns rows
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// Ping tests the database connection
	Ping(ctx context.Context) error
}
