package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/acme/product-importer/internal/apperror"
	"github.com/acme/product-importer/internal/product"
)

type mockRepo struct {
	mu     sync.Mutex
	subs   map[int64]*Subscription
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{subs: make(map[int64]*Subscription)}
}

func (m *mockRepo) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now().UTC()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "webhook not found")
	}
	cp := *sub
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, *sub)
	}
	return out, nil
}

func (m *mockRepo) ListEnabledByEvent(_ context.Context, event Event) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, sub := range m.subs {
		if sub.Enabled && sub.Event == event {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	delete(m.subs, id)
	return nil
}

func (m *mockRepo) RecordTestResult(_ context.Context, id int64, status int, testedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	sub.LastTestStatus = &status
	sub.LastTestedAt = &testedAt
	return nil
}

// capture records every request body a test subscriber receives.
type capture struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (c *capture) add(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, b)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func (c *capture) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return nil
	}
	return c.bodies[len(c.bodies)-1]
}

func newSubscriber(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cap.add(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func addSub(t *testing.T, repo *mockRepo, url string, event Event, enabled bool) *Subscription {
	t.Helper()
	sub := &Subscription{URL: url, Event: event, Enabled: enabled}
	if err := repo.Create(context.Background(), sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func TestDispatch_DeliversEnvelope(t *testing.T) {
	srv, cap := newSubscriber(t, http.StatusOK)
	repo := newMockRepo()
	addSub(t, repo, srv.URL, EventProductImported, true)

	svc := NewService(repo, WithClient(srv.Client()))
	svc.ImportCompleted(context.Background(), 2500, 2500)

	if cap.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", cap.count())
	}

	var got struct {
		Event   Event           `json:"event"`
		Payload ImportedPayload `json:"payload"`
	}
	if err := json.Unmarshal(cap.last(), &got); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if got.Event != EventProductImported {
		t.Errorf("expected event %s, got %s", EventProductImported, got.Event)
	}
	if got.Payload.Total != 2500 || got.Payload.Imported != 2500 {
		t.Errorf("unexpected payload: %+v", got.Payload)
	}
}

func TestDispatch_SkipsDisabledAndNonMatching(t *testing.T) {
	srv, cap := newSubscriber(t, http.StatusOK)
	repo := newMockRepo()
	addSub(t, repo, srv.URL, EventProductImported, false)
	addSub(t, repo, srv.URL, EventProductCreated, true)

	svc := NewService(repo, WithClient(srv.Client()))
	svc.Dispatch(context.Background(), EventProductImported, ImportedPayload{Total: 1, Imported: 1})

	if cap.count() != 0 {
		t.Fatalf("expected no deliveries, got %d", cap.count())
	}
}

func TestDispatch_UnreachableSubscriberIsSwallowed(t *testing.T) {
	repo := newMockRepo()
	addSub(t, repo, "http://127.0.0.1:1/hook", EventProductCreated, true)

	svc := NewService(repo, WithClient(&http.Client{Timeout: 200 * time.Millisecond}))

	// Must not panic or block; failures are logged and dropped.
	svc.RecordCreated(context.Background(), product.Product{ID: 1, SKU: "A1", Name: "Widget"})
}

func TestDispatch_RecordEvents(t *testing.T) {
	srv, cap := newSubscriber(t, http.StatusNoContent)
	repo := newMockRepo()
	addSub(t, repo, srv.URL, EventProductUpdated, true)

	svc := NewService(repo, WithClient(srv.Client()))
	svc.RecordUpdated(context.Background(), product.Product{ID: 7, SKU: "B2", Name: "Box"})

	if cap.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", cap.count())
	}

	var got struct {
		Event   Event         `json:"event"`
		Payload RecordPayload `json:"payload"`
	}
	if err := json.Unmarshal(cap.last(), &got); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if got.Event != EventProductUpdated || got.Payload.SKU != "B2" {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestTest_PersistsResult(t *testing.T) {
	srv, cap := newSubscriber(t, http.StatusTeapot)
	repo := newMockRepo()
	sub := addSub(t, repo, srv.URL, EventProductImported, true)

	svc := NewService(repo, WithClient(srv.Client()))
	before := time.Now().UTC().Add(-time.Second)

	got, err := svc.Test(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("test: %v", err)
	}

	if got.LastTestStatus == nil || *got.LastTestStatus != http.StatusTeapot {
		t.Errorf("expected persisted status 418, got %v", got.LastTestStatus)
	}
	if got.LastTestedAt == nil || got.LastTestedAt.Before(before) {
		t.Errorf("expected recent test timestamp, got %v", got.LastTestedAt)
	}

	var body map[string]bool
	if err := json.Unmarshal(cap.last(), &body); err != nil {
		t.Fatalf("unmarshal probe body: %v", err)
	}
	if !body["test"] {
		t.Errorf("expected test probe body, got %v", body)
	}
}

func TestTest_TransportErrorNotRecorded(t *testing.T) {
	repo := newMockRepo()
	sub := addSub(t, repo, "http://127.0.0.1:1/hook", EventProductImported, true)

	svc := NewService(repo, WithClient(&http.Client{Timeout: 200 * time.Millisecond}))
	if _, err := svc.Test(context.Background(), sub.ID); err == nil {
		t.Fatal("expected transport error")
	}

	stored, err := repo.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LastTestStatus != nil || stored.LastTestedAt != nil {
		t.Errorf("transport failure must not record a result: %+v", stored)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty url", CreateRequest{URL: "", Event: EventProductImported}},
		{"bad scheme", CreateRequest{URL: "ftp://example.com/hook", Event: EventProductImported}},
		{"no host", CreateRequest{URL: "http://", Event: EventProductImported}},
		{"unknown event", CreateRequest{URL: "https://example.com/hook", Event: "product_deleted"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			if !apperror.IsCode(err, apperror.BadRequest) {
				t.Fatalf("expected bad request, got %v", err)
			}
		})
	}
}

func TestCreate_DefaultsEnabled(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	sub, err := svc.Create(context.Background(), CreateRequest{
		URL:   "https://example.com/hook",
		Event: EventProductCreated,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sub.Enabled {
		t.Error("expected new subscription to default to enabled")
	}
	if sub.ID == 0 {
		t.Error("expected assigned id")
	}
}

func TestUpdate_TogglesEnabled(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	sub := addSub(t, repo, "https://example.com/hook", EventProductCreated, true)

	disabled := false
	got, err := svc.Update(context.Background(), UpdateRequest{
		ID:      sub.ID,
		URL:     "https://example.com/hook2",
		Event:   EventProductUpdated,
		Enabled: &disabled,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Enabled || got.URL != "https://example.com/hook2" || got.Event != EventProductUpdated {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestDelete_UnknownID(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.Delete(context.Background(), 99); !apperror.IsCode(err, apperror.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
