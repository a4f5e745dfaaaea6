// Package credstore persists portal credentials per environment in a
// local sqlite database. Secret values are stored verbatim but are
// never emitted through logging by this package.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Credentials holds the two credential pairs a portal environment may
// need: an outer Basic-Auth pair (test environment only) and the portal
// login pair (always required).
type Credentials struct {
	BasicUsername string
	BasicPassword string
	LoginUsername string
	LoginPassword string
}

type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the credential database at path.
// ":memory:" is supported for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open credstore: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open credstore: %w", err)
	}

	// sqlite does not handle concurrent writers well, see
	// https://stackoverflow.com/questions/35804884
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open credstore: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credstore: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores or replaces the credentials for an environment.
func (s *Store) Put(ctx context.Context, environment string, c Credentials) error {
	if c.LoginUsername == "" || c.LoginPassword == "" {
		return fmt.Errorf("credstore: login credentials are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portal_credentials (
			environment, basic_username, basic_password,
			login_username, login_password, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (environment) DO UPDATE SET
			basic_username = excluded.basic_username,
			basic_password = excluded.basic_password,
			login_username = excluded.login_username,
			login_password = excluded.login_password,
			updated_at = excluded.updated_at`,
		environment, c.BasicUsername, c.BasicPassword,
		c.LoginUsername, c.LoginPassword, time.Now().Unix(),
	)
	return err
}

// Get looks up the credentials for an environment. The second return
// value reports whether a record existed.
func (s *Store) Get(ctx context.Context, environment string) (Credentials, bool, error) {
	var c Credentials
	err := s.db.QueryRowContext(ctx, `
		SELECT basic_username, basic_password, login_username, login_password
		FROM portal_credentials WHERE environment = ?`,
		environment,
	).Scan(&c.BasicUsername, &c.BasicPassword, &c.LoginUsername, &c.LoginPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}
	return c, true, nil
}

// Delete removes the credentials for an environment, if present.
func (s *Store) Delete(ctx context.Context, environment string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM portal_credentials WHERE environment = ?`, environment)
	return err
}
