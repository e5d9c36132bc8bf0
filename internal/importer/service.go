package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/acme/product-importer/internal/progress"
)

const (
	defaultWorkers     = 5
	defaultChunkSize   = 1000
	defaultMaxAttempts = 3
	defaultRetryDelay  = 200 * time.Millisecond
)

// Service runs the import pipeline: normalize, dedupe, partition, upsert in
// parallel, then finalize once every work unit has reported.
type Service struct {
	store    Store
	tracker  progress.Tracker
	notifier Notifier

	workers     int
	chunkSize   int
	maxAttempts int
	retryDelay  time.Duration

	// baseCtx outlives the submitting request; a job, once accepted, runs to
	// completion or retry exhaustion. Cancelling it stops in-flight jobs
	// during shutdown.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func New(store Store, tracker progress.Tracker, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tracker:     tracker,
		workers:     defaultWorkers,
		chunkSize:   defaultChunkSize,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		baseCtx:     context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Service)

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) { s.baseCtx = ctx }
}

// Submit accepts a source file, registers the job, and starts its
// coordinating goroutine. The returned job id is available for polling
// immediately; all further outcomes surface through the tracker.
func (s *Service) Submit(ctx context.Context, sourcePath string) (string, error) {
	id := uuid.NewString()
	if err := s.tracker.Init(ctx, id, sourcePath); err != nil {
		return "", fmt.Errorf("init job state: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.baseCtx, id, sourcePath)
	}()

	slog.Info("import: job submitted", "job", id, "source", sourcePath)
	return id, nil
}

// Status returns the polled view of a job. Unknown ids yield a snapshot with
// StatusUnknown rather than an error.
func (s *Service) Status(ctx context.Context, id string) (progress.Snapshot, error) {
	return s.tracker.Get(ctx, id)
}

// Wait blocks until every in-flight job has finished. Used during graceful
// shutdown, after cancelling the base context.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, id, sourcePath string) {
	s.setStatus(ctx, id, progress.StatusParsing, "Parsing file")

	recs, err := s.parse(sourcePath)
	if err != nil {
		msg := "Import failed"
		if errors.Is(err, ErrEmptyInput) {
			msg = "Empty file or invalid"
		}
		slog.Error("import: parse failed", "job", id, "error", err)
		s.setStatus(ctx, id, progress.StatusFailed, msg)
		return
	}

	recs = Dedupe(recs)
	units := Split(recs, s.chunkSize)
	total := int64(len(recs))

	if err := s.tracker.SetTotal(ctx, id, total); err != nil {
		slog.Error("import: set total", "job", id, "error", err)
	}
	s.setStatus(ctx, id, progress.StatusProcessing, "Starting import")
	slog.Info("import: dispatching work units", "job", id, "records", total, "units", len(units))

	var failedUnits atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, unit := range units {
		g.Go(func() error {
			n, err := s.applyUnit(ctx, id, unit)
			if err != nil {
				// Terminal for this unit only; the rest keep running and the
				// failure is accounted for at finalization.
				failedUnits.Add(1)
				slog.Error("import: work unit failed", "job", id, "records", len(unit), "error", err)
				return nil
			}

			done, err := s.tracker.AddProcessed(ctx, id, n)
			if err != nil {
				slog.Error("import: update progress", "job", id, "error", err)
				return nil
			}
			if err := s.tracker.SetMessage(ctx, id, fmt.Sprintf("Processed %d/%d", done, total)); err != nil {
				slog.Error("import: update message", "job", id, "error", err)
			}
			return nil
		})
	}

	// The join barrier: nothing below runs until every unit has reported, and
	// it runs exactly once per job regardless of completion order.
	_ = g.Wait()

	if n := failedUnits.Load(); n > 0 {
		s.setStatus(ctx, id, progress.StatusFailed,
			fmt.Sprintf("Import failed: %d of %d work units not applied", n, len(units)))
		return
	}

	s.setStatus(ctx, id, progress.StatusComplete, "Import complete")
	slog.Info("import: job complete", "job", id, "records", total)

	if s.notifier != nil {
		s.notifier.ImportCompleted(ctx, total, total)
	}
}

func (s *Service) parse(sourcePath string) ([]Record, error) {
	rows, closeRows, err := OpenRows(sourcePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeRows() }()

	return Normalize(rows)
}

// applyUnit upserts one work unit, retrying with exponential backoff. Each
// attempt is atomic at the store level, so a retried unit never duplicates a
// SKU. Only the retrying unit blocks; the pool keeps running other units.
func (s *Service) applyUnit(ctx context.Context, id string, unit []Record) (int64, error) {
	delay := s.retryDelay
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		n, err := s.store.UpsertRecords(ctx, unit)
		if err == nil {
			return n, nil
		}
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}
		slog.Warn("import: upsert failed, retrying", "job", id,
			"attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return 0, fmt.Errorf("after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Service) setStatus(ctx context.Context, id string, status progress.Status, message string) {
	if err := s.tracker.SetStatus(ctx, id, status, message); err != nil {
		slog.Error("import: set status", "job", id, "status", string(status), "error", err)
	}
}
