// Package transcode runs EnzymeML exports and imports against an archive
// store and records every run in a catalog.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"enzymeml/internal/blob"
	"enzymeml/internal/catalog"
	"enzymeml/internal/observability"
	"enzymeml/internal/sbml"
	"enzymeml/pkg/domain"
)

// ArchivePrefix is the key prefix of archives stored without an explicit key.
const ArchivePrefix = "archives/"

// Service transcodes documents synchronously.
type Service struct {
	store   blob.Store
	catalog catalog.Store
	metrics *observability.Recorder
	logger  *zap.Logger
	verbose bool
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger runs report to. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run counts and durations on r.
func WithMetrics(r *observability.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithVerbose lists every consistency warning of an export.
func WithVerbose(v bool) Option {
	return func(s *Service) { s.verbose = v }
}

// NewService wires a service to its archive store and run catalog.
func NewService(store blob.Store, cat catalog.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: cat,
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArchiveKey is the default storage key of a run.
func ArchiveKey(id string) string { return ArchivePrefix + id + ".omex" }

// Export serializes doc, stores the archive under key (ArchiveKey of the
// run id when empty) and returns the finished run record. The record is
// saved even when the export fails.
func (s *Service) Export(ctx context.Context, doc *domain.Document, key string) (catalog.Record, error) {
	if doc == nil {
		return catalog.Record{}, fmt.Errorf("export requires a document")
	}
	rec, err := s.catalog.Save(ctx, s.newRecord(catalog.DirectionExport, doc.Name, key, catalog.StatusRunning))
	if err != nil {
		return catalog.Record{}, err
	}
	return s.runExport(ctx, rec, doc)
}

func (s *Service) newRecord(dir catalog.Direction, name, key string, status catalog.Status) catalog.Record {
	id := s.newID()
	if key == "" {
		key = ArchiveKey(id)
	}
	return catalog.Record{ID: id, Name: name, Direction: dir, Status: status, ArchiveKey: key}
}

func (s *Service) runExport(ctx context.Context, rec catalog.Record, doc *domain.Document) (catalog.Record, error) {
	start := time.Now()
	logger := s.logger.With(zap.String("run", rec.ID), zap.String("key", rec.ArchiveKey))
	rec.Status = catalog.StatusRunning

	err := func() error {
		res, err := sbml.Serialize(ctx, doc, sbml.WithLogger(logger), sbml.WithVerbose(s.verbose))
		if err != nil {
			return err
		}
		archive, err := res.Archive()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if _, err := archive.WriteTo(&buf); err != nil {
			return err
		}
		rec.Units = res.Units
		rec.Warnings = len(res.Warnings)
		rec.Species = len(doc.Species())
		rec.Measurements = len(doc.Measurements)
		_, err = s.store.Put(ctx, rec.ArchiveKey, &buf, blob.PutOptions{
			ContentType: blob.ArchiveContentType,
			Metadata: map[string]string{
				"run":          rec.ID,
				"name":         doc.Name,
				"units":        strconv.Itoa(rec.Units),
				"species":      strconv.Itoa(rec.Species),
				"measurements": strconv.Itoa(rec.Measurements),
			},
		})
		return err
	}()
	return s.finish(ctx, logger, rec, start, err)
}

// Import fetches the archive stored under key and parses it.
func (s *Service) Import(ctx context.Context, key string) (*domain.Document, catalog.Record, error) {
	start := time.Now()
	rec, err := s.catalog.Save(ctx, s.newRecord(catalog.DirectionImport, "", key, catalog.StatusRunning))
	if err != nil {
		return nil, catalog.Record{}, err
	}
	logger := s.logger.With(zap.String("run", rec.ID), zap.String("key", key))

	var doc *domain.Document
	err = func() error {
		if key == "" {
			return fmt.Errorf("import requires an archive key")
		}
		_, rc, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return &domain.LookupError{Kind: "archive", ID: key}
			}
			return err
		}
		defer func() { _ = rc.Close() }()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		doc, err = sbml.ParseBytes(ctx, raw, sbml.WithLogger(logger), sbml.WithVerbose(s.verbose))
		if err != nil {
			return err
		}
		rec.Name = doc.Name
		rec.Species = len(doc.Species())
		rec.Measurements = len(doc.Measurements)
		return nil
	}()
	rec, err = s.finish(ctx, logger, rec, start, err)
	if err != nil {
		return nil, rec, err
	}
	return doc, rec, nil
}

// Link returns a download URL for the archive of a finished export.
func (s *Service) Link(ctx context.Context, id string, expiry time.Duration) (string, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Direction != catalog.DirectionExport || rec.Status != catalog.StatusSucceeded {
		return "", fmt.Errorf("run %s has no stored archive", id)
	}
	return s.store.PresignURL(ctx, rec.ArchiveKey, blob.SignedURLOptions{Expiry: expiry})
}

// Runs lists catalogued runs.
func (s *Service) Runs(ctx context.Context, filter catalog.Filter) ([]catalog.Record, error) {
	return s.catalog.List(ctx, filter)
}

// finish records the outcome of a run. The catalog is written with a
// context that survives cancellation of the run itself.
func (s *Service) finish(ctx context.Context, logger *zap.Logger, rec catalog.Record, start time.Time, runErr error) (catalog.Record, error) {
	elapsed := time.Since(start)
	s.metrics.Observe(ctx, string(rec.Direction), runErr == nil, elapsed)
	if runErr != nil {
		rec.Status = catalog.StatusFailed
		rec.Error = runErr.Error()
		logger.Error("transcode failed", zap.String("direction", string(rec.Direction)), zap.Error(runErr))
	} else {
		rec.Status = catalog.StatusSucceeded
		logger.Info("transcode finished",
			zap.String("direction", string(rec.Direction)),
			zap.Int("units", rec.Units),
			zap.Int("species", rec.Species),
			zap.Int("measurements", rec.Measurements),
			zap.Duration("elapsed", elapsed),
		)
	}
	saved, err := s.catalog.Save(context.WithoutCancel(ctx), rec)
	if err != nil {
		return rec, errors.Join(runErr, fmt.Errorf("catalog run %s: %w", rec.ID, err))
	}
	return saved, runErr
}
