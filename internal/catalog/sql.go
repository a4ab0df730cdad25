package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name   string
	create string
	upsert string
	remove string
}

// sqlStore serves reads from the embedded Memory and writes every change
// through to a single JSON payload table.
type sqlStore struct {
	*Memory
	db      *sql.DB
	dialect dialect
	mu      sync.Mutex
}

func openSQL(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s runs table: %w", d.name, err)
	}
	recs, err := loadRecords(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &sqlStore{Memory: NewMemory(), db: db, dialect: d}
	s.load(recs)
	return s, nil
}

func loadRecords(ctx context.Context, db *sql.DB) ([]Record, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM transcode_runs`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var recs []Record
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return recs, nil
}

func (s *sqlStore) Save(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.stamp(rec)
	if err != nil {
		return Record{}, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, rec.ID, payload); err != nil {
		return Record{}, fmt.Errorf("upsert run %s: %w", rec.ID, err)
	}
	s.put(rec)
	return rec, nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, s.dialect.remove, id); err != nil {
		return false, fmt.Errorf("delete run %s: %w", id, err)
	}
	return s.Memory.Delete(ctx, id)
}

func (s *sqlStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests.
func (s *sqlStore) DB() *sql.DB { return s.db }
