// Package users records the host-platform users that talk to the chat
// endpoint. It is backed by a single SQLite file.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown user.
var ErrNotFound = errors.New("user not found")

// User is a host-platform account as reported by the mini-app host.
type User struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt time.Time
}

// Registry persists users.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the registry at path and runs the schema migration.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create users db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}
	// SQLite allows one writer; keep database/sql from racing itself.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate users db: %w", err)
	}
	return &Registry{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id    INTEGER UNIQUE NOT NULL,
			username       TEXT,
			first_name     TEXT,
			last_name      TEXT,
			language_code  TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,
			last_active_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id)")
	return err
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Save inserts u or, if its TelegramID is known, refreshes the profile
// fields and the last-active time.
func (r *Registry) Save(ctx context.Context, u User) error {
	if u.TelegramID == 0 {
		return errors.New("user has no telegram id")
	}
	now := r.now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name, language_code, created_at, updated_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username       = excluded.username,
			first_name     = excluded.first_name,
			last_name      = excluded.last_name,
			language_code  = excluded.language_code,
			last_active_at = excluded.last_active_at,
			updated_at     = excluded.updated_at`,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.LanguageCode, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.TelegramID, err)
	}
	return nil
}

// Get returns the user with the given Telegram id.
func (r *Registry) Get(ctx context.Context, telegramID int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, first_name, last_name, language_code, created_at, updated_at, last_active_at
		FROM users WHERE telegram_id = ?`, telegramID)

	var u User
	var created, updated, active string
	err := row.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode, &created, &updated, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	u.LastActiveAt, _ = time.Parse(time.RFC3339Nano, active)
	return &u, nil
}

// Count returns the number of known users.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
