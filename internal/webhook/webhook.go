package webhook

import (
	"context"
	"time"
)

// Event enumerates the notification kinds a subscription can register for.
type Event string

const (
	EventProductImported Event = "product_imported"
	EventProductCreated  Event = "product_created"
	EventProductUpdated  Event = "product_updated"
)

func (e Event) Valid() bool {
	switch e {
	case EventProductImported, EventProductCreated, EventProductUpdated:
		return true
	}
	return false
}

type Subscription struct {
	ID             int64      `json:"id"`
	URL            string     `json:"url"`
	Event          Event      `json:"event"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastTestedAt   *time.Time `json:"lastTestedAt,omitempty"`
	LastTestStatus *int       `json:"lastTestStatus,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id int64) (*Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
	ListEnabledByEvent(ctx context.Context, event Event) ([]Subscription, error)
	Delete(ctx context.Context, id int64) error
	RecordTestResult(ctx context.Context, id int64, status int, testedAt time.Time) error
}
