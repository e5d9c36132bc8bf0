package progress

import "context"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusParsing    Status = "parsing"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"

	// StatusUnknown is returned for job ids the tracker has never seen.
	// Polling an unknown id is not an error.
	StatusUnknown Status = "unknown"
)

// Snapshot is the polled view of one job. Progress is derived from
// processed/total at read time, which keeps it monotone under concurrent
// counter updates without coordinating a separate progress write.
type Snapshot struct {
	Status    Status `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Processed int64  `json:"processed"`
	Total     int64  `json:"total"`
	Source    string `json:"-"`
}

// Tracker is the per-job key space {status, message, processed, total,
// source} shared between the pipeline and the polling interface. AddProcessed
// must be an atomic read-modify-write; the other fields are each written by a
// single pipeline stage at a time and tolerate last-write-wins.
type Tracker interface {
	Init(ctx context.Context, id, source string) error
	SetStatus(ctx context.Context, id string, status Status, message string) error
	SetMessage(ctx context.Context, id, message string) error
	SetTotal(ctx context.Context, id string, total int64) error
	AddProcessed(ctx context.Context, id string, n int64) (int64, error)
	Get(ctx context.Context, id string) (Snapshot, error)
}

// Percent computes floor(processed*100/total) clamped to [0, 100].
func Percent(processed, total int64) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	p := int(processed * 100 / total)
	if p > 100 {
		return 100
	}
	return p
}
