// Package storage is the SQLite implementation of the rate, history and
// resource stores, used by the dev server and by tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ai-commands/internal/domain"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rate_states (
			user_id TEXT PRIMARY KEY,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			reset_at TEXT,
			version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_user ON chat_turns (user_id, id)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			amount REAL NOT NULL,
			kind TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, date)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse time %q: %w", s, err)
	}
	return t, nil
}

// GetRateState returns the zero state when the user has none yet.
func (db *DB) GetRateState(ctx context.Context, userID string) (domain.RateState, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT tokens_used, reset_at, version FROM rate_states WHERE user_id = ?",
		userID,
	)

	var s domain.RateState
	var resetAt sql.NullString
	if err := row.Scan(&s.TokensUsed, &resetAt, &s.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RateState{}, nil
		}
		return domain.RateState{}, err
	}
	if resetAt.Valid && resetAt.String != "" {
		t, err := parseTime(resetAt.String)
		if err != nil {
			return domain.RateState{}, err
		}
		s.ResetAt = t
	}
	return s, nil
}

// PutRateState writes next if the stored version equals expectedVersion.
// Version 0 means no row may exist yet.
func (db *DB) PutRateState(ctx context.Context, userID string, next domain.RateState, expectedVersion int64) error {
	var resetAt sql.NullString
	if !next.ResetAt.IsZero() {
		resetAt = sql.NullString{String: formatTime(next.ResetAt), Valid: true}
	}

	var res sql.Result
	var err error
	if expectedVersion == 0 {
		res, err = db.conn.ExecContext(ctx,
			`INSERT INTO rate_states (user_id, tokens_used, reset_at, version) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO NOTHING`,
			userID, next.TokensUsed, resetAt, next.Version,
		)
	} else {
		res, err = db.conn.ExecContext(ctx,
			"UPDATE rate_states SET tokens_used = ?, reset_at = ?, version = ? WHERE user_id = ? AND version = ?",
			next.TokensUsed, resetAt, next.Version, userID, expectedVersion,
		)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
