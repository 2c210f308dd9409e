// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/council/models"
)

const stateRowID = 1

// SQLStore keeps the state document in a database/sql backend.
type SQLStore struct {
	db       *sql.DB
	driver   string
	defaults models.Settings
}

// OpenSQL connects with driver ("postgres" or "sqlite"), verifies the
// connection and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string, defaults models.Settings) (*SQLStore, error) {
	if driver != driverPostgres && driver != driverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == driverSQLite {
		// One writer keeps SQLite from reporting SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	if err := CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &SQLStore{db: conn, driver: driver, defaults: defaults}, nil
}

// Load reads the state document. An empty table yields the default state,
// which is written back immediately.
func (s *SQLStore) Load(ctx context.Context) (models.State, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.query(`SELECT payload FROM council_state WHERE id = $1`), stateRowID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		state := models.DefaultState(s.defaults)
		if err := s.Save(ctx, state); err != nil {
			return models.State{}, err
		}
		return state, nil
	}
	if err != nil {
		return models.State{}, fmt.Errorf("failed to load state: %w", err)
	}

	var state models.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return models.State{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state.Normalize(), nil
}

func (s *SQLStore) Save(ctx context.Context, state models.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.query(`
		INSERT INTO council_state (id, payload, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`), stateRowID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// query rewrites PostgreSQL placeholders for SQLite.
func (s *SQLStore) query(q string) string {
	if s.driver != driverSQLite {
		return q
	}
	return placeholder.ReplaceAllString(q, "?$1")
}
