package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const defaultPostgresDSN = "postgres://localhost/enzymeml?sslmode=disable"

var postgresDialect = dialect{
	name: "postgres",
	create: `CREATE TABLE IF NOT EXISTS transcode_runs (
		id TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
	upsert: `INSERT INTO transcode_runs(id,payload) VALUES($1,$2) ON CONFLICT(id) DO UPDATE SET payload=EXCLUDED.payload`,
	remove: `DELETE FROM transcode_runs WHERE id = $1`,
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres is a catalog backed by a Postgres table.
type Postgres struct {
	*sqlStore
}

// NewPostgres connects with dsn, falling back to a local default, and loads
// existing runs.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := openSQL(ctx, db, postgresDialect)
	if err != nil {
		return nil, err
	}
	return &Postgres{sqlStore: s}, nil
}

// OverrideSQLOpen swaps the sql.Open used by NewPostgres and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
