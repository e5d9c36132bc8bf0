package importer

import (
	"context"
	"errors"
	"strings"
)

// Record is one normalized product row from an input file.
type Record struct {
	SKU         string
	Name        string
	Description string
}

// Key returns the case-folded natural key used for deduplication and upserts.
func (r Record) Key() string {
	return strings.ToLower(r.SKU)
}

// ErrEmptyInput reports a source file that produced no valid records. It is an
// expected condition: the job fails with a human-readable message and no work
// units are dispatched.
var ErrEmptyInput = errors.New("input contains no valid records")

// Store applies one work unit's records to durable storage. The upsert is
// keyed case-insensitively on SKU and must be atomic for the whole slice so a
// retried unit can never duplicate a key.
type Store interface {
	UpsertRecords(ctx context.Context, recs []Record) (int64, error)
}

// Notifier announces finished imports to external subscribers. Delivery is
// best-effort and must never fail the job.
type Notifier interface {
	ImportCompleted(ctx context.Context, imported, total int64)
}
