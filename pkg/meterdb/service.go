// MeterDB contains the persisted quarter hour readings and the usage
// aggregates computed from them.
// This database should only be written to by meter_collector
// but can be read by any service.
package meterdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type MeterDB struct {
	db *sql.DB
}

// Open opens the SQLite database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*MeterDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open meter db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	// Create DB before migrations
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to meter db: %w", err)
	}

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *MeterDB {
	return &MeterDB{db: db}
}

func (m *MeterDB) Close() error {
	return m.db.Close()
}
