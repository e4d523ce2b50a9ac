// Package prefs persists the few operator preferences the panel remembers
// between runs: the last network target and the sidebar state.
package prefs

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	keyHost    = "target.host"
	keyPort    = "target.port"
	keySidebar = "sidebar.collapsed"
)

// Store is a small key/value table in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open prefs db")
	}
	// one writer is all SQLite allows anyway
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create prefs table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return v, true, nil
}

func (s *Store) set(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO prefs (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return errors.Wrapf(err, "set %s", key)
}

func (s *Store) setAll(ctx context.Context, kv ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if err := s.set(ctx, tx, kv[i], kv[i+1]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Target returns the saved network target. ok is false if none was saved.
func (s *Store) Target(ctx context.Context) (host string, port int, ok bool, err error) {
	host, ok, err = s.get(ctx, keyHost)
	if err != nil || !ok {
		return "", 0, false, err
	}
	p, ok, err := s.get(ctx, keyPort)
	if err != nil || !ok {
		return "", 0, false, err
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, false, errors.Wrap(err, "saved port")
	}
	return host, port, true, nil
}

// SaveTarget stores host and port together.
func (s *Store) SaveTarget(ctx context.Context, host string, port int) error {
	return s.setAll(ctx, keyHost, host, keyPort, strconv.Itoa(port))
}

// Sidebar reports whether the sidebar was left collapsed. It defaults to false.
func (s *Store) Sidebar(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, keySidebar)
	if err != nil || !ok {
		return false, err
	}
	collapsed, err := strconv.ParseBool(v)
	return collapsed, errors.Wrap(err, "saved sidebar state")
}

func (s *Store) SetSidebar(ctx context.Context, collapsed bool) error {
	return s.setAll(ctx, keySidebar, strconv.FormatBool(collapsed))
}
