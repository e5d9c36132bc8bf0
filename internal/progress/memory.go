package progress

import (
	"context"
	"sync"
)

// MemoryTracker keeps job state in-process. It is the tracker used in tests
// and in deployments without Redis; state does not survive a restart.
type MemoryTracker struct {
	mu   sync.RWMutex
	jobs map[string]*jobState
}

type jobState struct {
	status    Status
	message   string
	processed int64
	total     int64
	source    string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{jobs: make(map[string]*jobState)}
}

func (t *MemoryTracker) Init(_ context.Context, id, source string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &jobState{status: StatusQueued, message: "Queued", source: source}
	return nil
}

func (t *MemoryTracker) SetStatus(_ context.Context, id string, status Status, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.status = status
		j.message = message
	}
	return nil
}

func (t *MemoryTracker) SetMessage(_ context.Context, id, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.message = message
	}
	return nil
}

func (t *MemoryTracker) SetTotal(_ context.Context, id string, total int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.total = total
	}
	return nil
}

func (t *MemoryTracker) AddProcessed(_ context.Context, id string, n int64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return 0, nil
	}
	j.processed += n
	return j.processed, nil
}

func (t *MemoryTracker) Get(_ context.Context, id string) (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Snapshot{Status: StatusUnknown}, nil
	}
	return Snapshot{
		Status:    j.status,
		Progress:  Percent(j.processed, j.total),
		Message:   j.message,
		Processed: j.processed,
		Total:     j.total,
		Source:    j.source,
	}, nil
}
