// Package state implements the embedded-SQL step-state store (spec §4.4,
// §3.3): plans, steps, dependencies, checklist items, artifacts and dashes,
// with the claim/lease/heartbeat/complete protocol that lets multiple
// workers operate on the same plan without double-executing a step.
package state

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for tug's execution-coordination
// state, mirroring internal/store/store.go's Open/schema/migrate shape.
type Store struct {
	db *sql.DB
}

// Open creates or opens the state database at dbPath and ensures the
// schema exists, matching the teacher's WAL + busy_timeout DSN pragmas so
// concurrent CLI invocations serialise on the database file rather than
// erroring with SQLITE_BUSY (spec §5, "Locking & shared resources").
func Open(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}

	s := &Store{db: db}
	if err := migrate(s); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: migrate: %w", err)
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for ad-hoc read queries that have no
// dedicated method.
func (s *Store) DB() *sql.DB {
	return s.db
}
