package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/acme/product-importer/internal/product"
)

const (
	// One attempt per subscriber with a hard timeout: a slow endpoint must
	// not stall finalization, and delivery is at-most-once by policy.
	dispatchTimeout = 5 * time.Second
	testTimeout     = 10 * time.Second
)

type envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

// ImportedPayload accompanies EventProductImported.
type ImportedPayload struct {
	Total    int64 `json:"total"`
	Imported int64 `json:"imported"`
}

// RecordPayload accompanies record lifecycle events.
type RecordPayload struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

type Service struct {
	repo   Repository
	client *http.Client
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		client: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Service)

func WithClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// Dispatch delivers the event to every enabled matching subscription, one
// attempt each. Failures are logged and swallowed; they never propagate to
// the caller and are never retried here.
func (s *Service) Dispatch(ctx context.Context, event Event, payload any) {
	subs, err := s.repo.ListEnabledByEvent(ctx, event)
	if err != nil {
		slog.Error("webhook: list subscriptions", "event", string(event), "error", err)
		return
	}

	for _, sub := range subs {
		if err := s.deliver(ctx, sub.URL, envelope{Event: event, Payload: payload}); err != nil {
			slog.Warn("webhook: delivery failed", "event", string(event), "url", sub.URL, "error", err)
		}
	}
}

// ImportCompleted implements importer.Notifier.
func (s *Service) ImportCompleted(ctx context.Context, imported, total int64) {
	s.Dispatch(ctx, EventProductImported, ImportedPayload{Total: total, Imported: imported})
}

// RecordCreated implements product.Notifier.
func (s *Service) RecordCreated(ctx context.Context, p product.Product) {
	s.Dispatch(ctx, EventProductCreated, RecordPayload{ID: p.ID, SKU: p.SKU, Name: p.Name})
}

// RecordUpdated implements product.Notifier.
func (s *Service) RecordUpdated(ctx context.Context, p product.Product) {
	s.Dispatch(ctx, EventProductUpdated, RecordPayload{ID: p.ID, SKU: p.SKU, Name: p.Name})
}

func (s *Service) deliver(ctx context.Context, url string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	resp, err := s.post(ctx, url, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber returned %s", resp.Status)
	}
	return nil
}

// Create registers a new subscription.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Subscription, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	sub := &Subscription{URL: req.URL, Event: req.Event, Enabled: true}
	if req.Enabled != nil {
		sub.Enabled = *req.Enabled
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []Subscription{}
	}
	return subs, nil
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Subscription, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	sub, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	sub.URL = req.URL
	sub.Event = req.Event
	if req.Enabled != nil {
		sub.Enabled = *req.Enabled
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Test probes one subscription synchronously and persists the resulting
// status code and timestamp. A transport failure (no response at all) is
// returned without recording a result.
func (s *Service) Test(ctx context.Context, id int64) (*Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	resp, err := s.post(reqCtx, sub.URL, map[string]bool{"test": true})
	if err != nil {
		return nil, fmt.Errorf("test webhook: %w", err)
	}
	_ = resp.Body.Close()

	now := time.Now().UTC()
	if err := s.repo.RecordTestResult(ctx, id, resp.StatusCode, now); err != nil {
		return nil, fmt.Errorf("record test result: %w", err)
	}

	return s.repo.Get(ctx, id)
}

func (s *Service) post(ctx context.Context, url string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.client.Do(req)
}
