package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var sqliteDialect = dialect{
	name: "sqlite",
	create: `CREATE TABLE IF NOT EXISTS transcode_runs (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
	upsert: `INSERT INTO transcode_runs(id,payload) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET payload=excluded.payload`,
	remove: `DELETE FROM transcode_runs WHERE id = ?`,
}

// SQLite is a catalog backed by a single database file.
type SQLite struct {
	*sqlStore
	path string
}

// NewSQLite opens or creates the database at path and loads existing runs.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "enzymeml.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := openSQL(ctx, db, sqliteDialect)
	if err != nil {
		return nil, err
	}
	return &SQLite{sqlStore: s, path: path}, nil
}

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }
