package importer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acme/product-importer/internal/progress"
)

type mockStore struct {
	mu       sync.Mutex
	products map[string]Record

	calls    atomic.Int64
	failLeft atomic.Int64 // fail this many calls before succeeding
	failSKU  string       // permanently fail any unit containing this SKU
	jitter   time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{products: make(map[string]Record)}
}

func (m *mockStore) UpsertRecords(_ context.Context, recs []Record) (int64, error) {
	m.calls.Add(1)

	if m.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(m.jitter))))
	}
	if m.failSKU != "" {
		for _, r := range recs {
			if r.SKU == m.failSKU {
				return 0, errors.New("store unavailable")
			}
		}
	}
	if m.failLeft.Add(-1) >= 0 {
		return 0, errors.New("store unavailable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.products[r.Key()] = r
	}
	return int64(len(recs)), nil
}

func (m *mockStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

func (m *mockStore) get(key string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.products[key]
	return r, ok
}

type fakeNotifier struct {
	calls    atomic.Int64
	imported atomic.Int64
	total    atomic.Int64
}

func (f *fakeNotifier) ImportCompleted(_ context.Context, imported, total int64) {
	f.calls.Add(1)
	f.imported.Store(imported)
	f.total.Store(total)
}

func genCSV(n int) string {
	var b strings.Builder
	b.WriteString("sku,name,description\n")
	for i := range n {
		fmt.Fprintf(&b, "sku-%05d,Product %d,desc\n", i, i)
	}
	return b.String()
}

func newTestService(store Store, tracker progress.Tracker, notifier Notifier, opts ...Option) *Service {
	base := []Option{
		WithWorkers(4),
		WithChunkSize(1000),
		WithRetryDelay(time.Millisecond),
		WithNotifier(notifier),
	}
	return New(store, tracker, append(base, opts...)...)
}

// waitForTerminal polls until the job reaches complete or failed, asserting
// along the way that progress never decreases.
func waitForTerminal(t *testing.T, svc *Service, id string) progress.Snapshot {
	t.Helper()

	deadline := time.After(5 * time.Second)
	lastProgress := 0
	for {
		snap, err := svc.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if snap.Progress < lastProgress {
			t.Fatalf("progress went backwards: %d -> %d", lastProgress, snap.Progress)
		}
		lastProgress = snap.Progress

		if snap.Status == progress.StatusComplete || snap.Status == progress.StatusFailed {
			return snap
		}

		select {
		case <-deadline:
			t.Fatalf("timed out waiting for terminal status, last: %+v", snap)
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestService_ImportCompletes(t *testing.T) {
	store := newMockStore()
	notifier := &fakeNotifier{}
	svc := newTestService(store, progress.NewMemoryTracker(), notifier)

	path := writeTempFile(t, "big.csv", genCSV(2500))
	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusComplete {
		t.Fatalf("expected complete, got %s (%s)", snap.Status, snap.Message)
	}
	if snap.Processed != 2500 || snap.Total != 2500 {
		t.Errorf("expected 2500/2500, got %d/%d", snap.Processed, snap.Total)
	}
	if snap.Progress != 100 {
		t.Errorf("expected progress 100, got %d", snap.Progress)
	}
	if store.len() != 2500 {
		t.Errorf("expected 2500 stored records, got %d", store.len())
	}
	// 2500 records at chunk size 1000 dispatch exactly 3 work units.
	if store.calls.Load() != 3 {
		t.Errorf("expected 3 upsert calls, got %d", store.calls.Load())
	}
	if notifier.calls.Load() != 1 {
		t.Errorf("expected 1 notification, got %d", notifier.calls.Load())
	}
	if notifier.total.Load() != 2500 {
		t.Errorf("expected notified total 2500, got %d", notifier.total.Load())
	}
}

func TestService_CaseInsensitiveLastWins(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, progress.NewMemoryTracker(), nil)

	csv := "sku,name\nA1,Widget\nSKU,Name\na1,Widget v2\n"
	path := writeTempFile(t, "dup.csv", csv)

	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusComplete {
		t.Fatalf("expected complete, got %s", snap.Status)
	}
	if store.len() != 1 {
		t.Fatalf("expected a single record, got %d", store.len())
	}
	rec, ok := store.get("a1")
	if !ok {
		t.Fatal("record a1 missing")
	}
	if rec.SKU != "a1" || rec.Name != "Widget v2" {
		t.Errorf("expected last occurrence stored, got %+v", rec)
	}
}

func TestService_EmptyFileFailsJob(t *testing.T) {
	store := newMockStore()
	notifier := &fakeNotifier{}
	svc := newTestService(store, progress.NewMemoryTracker(), notifier)

	path := writeTempFile(t, "empty.csv", "sku,name,description\n")
	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.Message != "Empty file or invalid" {
		t.Errorf("unexpected message: %q", snap.Message)
	}
	if store.calls.Load() != 0 {
		t.Errorf("expected no units dispatched, got %d calls", store.calls.Load())
	}
	if notifier.calls.Load() != 0 {
		t.Errorf("expected no notification on failure, got %d", notifier.calls.Load())
	}
}

func TestService_RetryBelowCapSucceeds(t *testing.T) {
	store := newMockStore()
	store.failLeft.Store(2)
	svc := newTestService(store, progress.NewMemoryTracker(), nil, WithMaxAttempts(3))

	path := writeTempFile(t, "retry.csv", genCSV(10))
	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusComplete {
		t.Fatalf("expected complete after retries, got %s (%s)", snap.Status, snap.Message)
	}
	if store.len() != 10 {
		t.Errorf("expected 10 stored records, got %d", store.len())
	}
	// One unit, two failed attempts, one success.
	if store.calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", store.calls.Load())
	}
}

func TestService_ExhaustedUnitFailsJobWithoutCorruptingOthers(t *testing.T) {
	store := newMockStore()
	store.failSKU = "sku-00001"
	notifier := &fakeNotifier{}
	svc := newTestService(store, progress.NewMemoryTracker(), notifier,
		WithChunkSize(5), WithMaxAttempts(2))

	path := writeTempFile(t, "partial.csv", genCSV(10))
	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if !strings.Contains(snap.Message, "1 of 2 work units") {
		t.Errorf("unexpected message: %q", snap.Message)
	}
	if snap.Processed != 5 {
		t.Errorf("expected 5 processed from the healthy unit, got %d", snap.Processed)
	}
	if snap.Progress >= 100 {
		t.Errorf("progress must not reach 100 on partial failure, got %d", snap.Progress)
	}
	if store.len() != 5 {
		t.Errorf("expected the healthy unit's 5 records, got %d", store.len())
	}
	if notifier.calls.Load() != 0 {
		t.Errorf("expected no completion notification, got %d", notifier.calls.Load())
	}
}

func TestService_FinalizerRunsOnce(t *testing.T) {
	store := newMockStore()
	store.jitter = 3 * time.Millisecond
	notifier := &fakeNotifier{}
	svc := newTestService(store, progress.NewMemoryTracker(), notifier,
		WithChunkSize(5), WithWorkers(8))

	path := writeTempFile(t, "many.csv", genCSV(100))
	id, err := svc.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := waitForTerminal(t, svc, id)
	if snap.Status != progress.StatusComplete {
		t.Fatalf("expected complete, got %s", snap.Status)
	}
	if snap.Processed != 100 {
		t.Errorf("expected processed 100, got %d", snap.Processed)
	}
	if notifier.calls.Load() != 1 {
		t.Errorf("finalizer must run exactly once, notified %d times", notifier.calls.Load())
	}
}

func TestService_ResubmitIsIdempotent(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, progress.NewMemoryTracker(), nil)

	path := writeTempFile(t, "again.csv", genCSV(50))

	for range 2 {
		id, err := svc.Submit(context.Background(), path)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if snap := waitForTerminal(t, svc, id); snap.Status != progress.StatusComplete {
			t.Fatalf("expected complete, got %s", snap.Status)
		}
	}

	if store.len() != 50 {
		t.Errorf("re-submission changed the record set: %d records", store.len())
	}
}

func TestService_UnknownJobStatus(t *testing.T) {
	svc := newTestService(newMockStore(), progress.NewMemoryTracker(), nil)

	snap, err := svc.Status(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != progress.StatusUnknown {
		t.Errorf("expected unknown status, got %s", snap.Status)
	}
	if snap.Progress != 0 {
		t.Errorf("expected zero progress, got %d", snap.Progress)
	}
}

func TestService_WaitDrainsJobs(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, progress.NewMemoryTracker(), nil)

	path := writeTempFile(t, "drain.csv", genCSV(20))
	if _, err := svc.Submit(context.Background(), path); err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()

	select {
	case <-done:
		if store.len() != 20 {
			t.Errorf("Wait returned before job finished: %d records", store.len())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs to drain")
	}
}
