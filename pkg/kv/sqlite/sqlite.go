// Package sqlite provides a SQLite-backed kv.Driver using ent.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/recall/pkg/kv/entkv"
)

// Driver implements kv.Driver using SQLite via the ent driver.
type Driver struct {
	*entkv.Driver
}

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) entkv.Option {
	return entkv.WithClock(now)
}

// NewDriver opens (creating if needed) the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string, opts ...entkv.Option) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and the pragmas
	// below are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	d, err := entkv.Open(context.Background(), drv, opts...)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return &Driver{Driver: d}, nil
}
