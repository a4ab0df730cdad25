package transcode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"enzymeml/internal/catalog"
	"enzymeml/pkg/domain"
)

// ErrQueueFull is returned by Enqueue when no slot is free.
var ErrQueueFull = errors.New("export queue full")

// Worker runs exports in the background. Each enqueued export gets a run
// record that moves from queued to running to succeeded or failed.
type Worker struct {
	service *Service
	workers int

	queue  chan exportTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type exportTask struct {
	rec catalog.Record
	doc *domain.Document
}

// NewWorker creates a worker with queueSize pending slots served by
// workers goroutines.
func NewWorker(s *Service, queueSize, workers int) *Worker {
	if queueSize <= 0 {
		queueSize = 32
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: s,
		workers: workers,
		queue:   make(chan exportTask, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. Calling it twice has no effect.
func (w *Worker) Start() {
	w.once.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.loop()
		}
	})
}

// Stop cancels running exports and waits for the goroutines to return.
// Exports still queued stay in the catalog as queued.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.service.metrics.QueueDepth(len(w.queue))
			if w.ctx.Err() != nil {
				return
			}
			// The failure is already on the record.
			_, _ = w.service.runExport(w.ctx, task.rec, task.doc)
		}
	}
}

// Enqueue schedules an export of doc and returns the queued record. doc
// must not be modified until the run is terminal.
func (w *Worker) Enqueue(ctx context.Context, doc *domain.Document, key string) (catalog.Record, error) {
	if doc == nil {
		return catalog.Record{}, fmt.Errorf("export requires a document")
	}
	if err := w.ctx.Err(); err != nil {
		return catalog.Record{}, fmt.Errorf("worker stopped: %w", err)
	}
	rec, err := w.service.catalog.Save(ctx, w.service.newRecord(catalog.DirectionExport, doc.Name, key, catalog.StatusQueued))
	if err != nil {
		return catalog.Record{}, err
	}
	select {
	case w.queue <- exportTask{rec: rec, doc: doc}:
		w.service.metrics.QueueDepth(len(w.queue))
		w.service.logger.Debug("export queued", zap.String("run", rec.ID))
		return rec, nil
	default:
		rec.Status = catalog.StatusFailed
		rec.Error = ErrQueueFull.Error()
		_, _ = w.service.catalog.Save(ctx, rec)
		return catalog.Record{}, ErrQueueFull
	}
}

// Status returns the current record of run id.
func (w *Worker) Status(ctx context.Context, id string) (catalog.Record, error) {
	return w.service.catalog.Get(ctx, id)
}
