package product

import (
	"context"
	"time"

	"github.com/acme/product-importer/internal/importer"
)

type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFilter narrows List results. Query matches SKU, name, or description
// as a substring; Active of nil means both.
type ListFilter struct {
	Query   string
	Active  *bool
	Page    int
	PerPage int
}

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Product, int64, error)
	Get(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)

	// UpsertRecords applies one import work unit atomically; see
	// importer.Store.
	UpsertRecords(ctx context.Context, recs []importer.Record) (int64, error)
}

// Notifier announces record lifecycle changes from manual CRUD. Delivery is
// best-effort; implementations must not return errors into the write path.
type Notifier interface {
	RecordCreated(ctx context.Context, p Product)
	RecordUpdated(ctx context.Context, p Product)
}
