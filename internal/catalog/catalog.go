// Package catalog records every transcoding run: what was converted, where
// the archive lives and how the run ended. Records are kept in memory and,
// for the sqlite and postgres drivers, written through as JSON rows.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction of a transcoding run.
type Direction string

const (
	DirectionExport Direction = "export"
	DirectionImport Direction = "import"
)

// Status of a transcoding run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Record describes one run.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Direction    Direction `json:"direction"`
	Status       Status    `json:"status"`
	ArchiveKey   string    `json:"archive_key"`
	Units        int       `json:"units"`
	Species      int       `json:"species"`
	Measurements int       `json:"measurements"`
	Warnings     int       `json:"warnings,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Direction Direction
	Status    Status
}

func (f Filter) match(r Record) bool {
	return (f.Direction == "" || f.Direction == r.Direction) && (f.Status == "" || f.Status == r.Status)
}

// Store persists run records.
type Store interface {
	Save(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("catalog record not found")

// Driver names a catalog backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config selects a backend. DSN is a file path for sqlite and a connection
// string for postgres.
type Config struct {
	Driver Driver
	DSN    string
}

// Open constructs the store named by cfg.Driver. An empty driver means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(ctx, cfg.DSN)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}
