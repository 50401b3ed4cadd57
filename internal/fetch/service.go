package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ytget/mediaq/internal/model"
	"github.com/ytget/mediaq/internal/registry"
)

// Worker pool bounds
const (
	DefaultMaxWorkers = 4
	MinMaxWorkers     = 1
	MaxMaxWorkers     = 10
)

// DefaultArchiveName is the dedup ledger file kept in the destination directory
const DefaultArchiveName = "downloaded.txt"

// Locator checks the destination directory for an existing output.
type Locator interface {
	Locate(reference, destDir string) (string, bool)
}

// Service drains batches of items through a bounded pool of fetch workers.
// The semaphore is shared between concurrent batches and retries, so the
// worker limit is global, not per call.
type Service struct {
	registry    *registry.Registry
	locator     Locator
	engine      Engine
	canceller   *Canceller
	sem         *semaphore.Weighted
	workers     int
	downloadDir string
	archiveName string
	onComplete  func(model.BatchSummary) // callback for batch completion
}

// NewService creates a new fetch service. maxWorkers is clamped to [1, 10].
func NewService(reg *registry.Registry, locator Locator, engine Engine, downloadDir string, maxWorkers int) *Service {
	if maxWorkers < MinMaxWorkers {
		maxWorkers = DefaultMaxWorkers
	}
	if maxWorkers > MaxMaxWorkers {
		maxWorkers = MaxMaxWorkers
	}
	return &Service{
		registry:    reg,
		locator:     locator,
		engine:      engine,
		canceller:   NewCanceller(),
		sem:         semaphore.NewWeighted(int64(maxWorkers)),
		workers:     maxWorkers,
		downloadDir: downloadDir,
		archiveName: DefaultArchiveName,
	}
}

// SetCompleteCallback sets the callback invoked when a batch has drained
func (s *Service) SetCompleteCallback(callback func(model.BatchSummary)) {
	s.onComplete = callback
}

// SetArchiveName overrides the dedup ledger file name
func (s *Service) SetArchiveName(name string) {
	if name != "" {
		s.archiveName = name
	}
}

// Cancel requests cooperative cancellation of the current run. In-flight
// fetches observe it at their next progress checkpoint; queued items are
// cancelled before the engine is invoked.
func (s *Service) Cancel() {
	s.canceller.Cancel()
}

// RunBatch drains the given items and blocks until every one of them has
// reached a terminal state. One item's failure never aborts its siblings.
func (s *Service) RunBatch(ctx context.Context, itemIDs []int64) model.BatchSummary {
	generation := s.canceller.Begin()
	batch := model.NewBatch(generation, itemIDs)

	// Immediate feedback: everything runnable goes to Queued up front.
	runnable := make([]int64, 0, len(batch.ItemIDs))
	for _, id := range batch.ItemIDs {
		if err := s.registry.Enqueue(id); err != nil {
			log.Printf("fetch: batch %s: not queueing item %d: %v", batch.ID, id, err)
			continue
		}
		runnable = append(runnable, id)
	}

	var g errgroup.Group
	for _, id := range runnable {
		reference, ok := s.registry.Reference(id)
		if !ok {
			continue
		}

		// Existing output short-circuits to Skipped without a worker slot.
		if path, found := s.locator.Locate(reference, s.downloadDir); found {
			if err := s.registry.Skip(id, path); err != nil {
				log.Printf("fetch: batch %s: skip item %d: %v", batch.ID, id, err)
			}
			continue
		}

		g.Go(func() error {
			s.runWorker(ctx, generation, id)
			return nil
		})
	}
	_ = g.Wait()

	summary := s.summarize(batch)
	if s.onComplete != nil {
		s.onComplete(summary)
	}
	return summary
}

// Retry re-submits one terminal item through the same per-item fetch path used
// by RunBatch, as a single-item batch sharing the worker limit.
func (s *Service) Retry(ctx context.Context, id int64) (model.BatchSummary, error) {
	item, ok := s.registry.Get(id)
	if !ok {
		return model.BatchSummary{}, fmt.Errorf("item not found: %d", id)
	}
	if !item.State.IsRetryable() {
		return model.BatchSummary{}, fmt.Errorf("item %d is not retryable in state %s", id, item.State)
	}
	return s.RunBatch(ctx, []int64{id}), nil
}

// runWorker acquires a pool slot and processes one queued item to a terminal
// state.
func (s *Service) runWorker(ctx context.Context, generation int64, id int64) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		_ = s.registry.Cancel(id)
		return
	}
	defer s.sem.Release(1)

	// Cancellation requested while the item sat in the queue: terminal
	// Cancelled without ever invoking the engine.
	if s.canceller.Cancelled(generation) {
		if err := s.registry.Cancel(id); err != nil {
			log.Printf("fetch: cancel queued item %d: %v", id, err)
		}
		return
	}

	reference, ok := s.registry.Reference(id)
	if !ok {
		// Removed while queued; nothing to do.
		return
	}

	if err := s.registry.StartDownloading(id); err != nil {
		log.Printf("fetch: dispatch item %d: %v", id, err)
		return
	}

	req := Request{
		Reference:   reference,
		OutputDir:   s.downloadDir,
		ArchivePath: filepath.Join(s.downloadDir, s.archiveName),
	}

	outputPath, err := s.engine.Fetch(ctx, req, func(ev ProgressEvent) error {
		// Every callback invocation is a cancellation checkpoint.
		if s.canceller.Cancelled(generation) {
			return ErrCancelled
		}
		switch ev.Status {
		case ProgressDownloading:
			if err := s.registry.SetDownloadProgress(id, ev.Percent()); err != nil {
				log.Printf("fetch: progress for item %d: %v", id, err)
			}
		case ProgressFinished:
			// Repeated finished reports (multi-stream downloads) are a no-op.
			_ = s.registry.StartPostprocessing(id)
		case ProgressError:
			// The terminal mapping happens on the engine's return value.
		}
		if ev.Title != "" {
			_ = s.registry.SetTitle(id, ev.Title)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		if cerr := s.registry.Cancel(id); cerr != nil {
			log.Printf("fetch: cancel item %d: %v", id, cerr)
		}
	case err != nil:
		if ferr := s.registry.Fail(id, err.Error()); ferr != nil {
			log.Printf("fetch: fail item %d: %v", id, ferr)
		}
	default:
		if cerr := s.registry.Complete(id, outputPath); cerr != nil {
			log.Printf("fetch: complete item %d: %v", id, cerr)
		}
	}
}

func (s *Service) summarize(batch *model.Batch) model.BatchSummary {
	summary := model.BatchSummary{BatchID: batch.ID}
	for _, id := range batch.ItemIDs {
		item, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		switch item.State {
		case model.StateDone:
			summary.Done++
		case model.StateSkipped:
			summary.Skipped++
		case model.StateCancelled:
			summary.Cancelled++
		case model.StateError:
			summary.Errors++
		}
	}
	return summary
}
