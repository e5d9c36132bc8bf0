package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/acme/product-importer/internal/apperror"
	domain "github.com/acme/product-importer/internal/webhook"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `id, url, event_type, enabled, created_at, last_tested_at, last_test_status`

func (r *Repository) Create(ctx context.Context, sub *domain.Subscription) error {
	const query = `INSERT INTO webhooks (url, event_type, enabled) VALUES (?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, sub.URL, string(sub.Event), sub.Enabled)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	sub.ID, _ = res.LastInsertId()
	sub.CreatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Update(ctx context.Context, sub *domain.Subscription) error {
	const query = `UPDATE webhooks SET url = ?, event_type = ?, enabled = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, sub.URL, string(sub.Event), sub.Enabled, sub.ID)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhooks WHERE id = ?`, subscriptionColumns)

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "webhook not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return sub, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhooks ORDER BY id ASC`, subscriptionColumns)
	return r.queryList(ctx, query)
}

func (r *Repository) ListEnabledByEvent(ctx context.Context, event domain.Event) ([]domain.Subscription, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM webhooks WHERE event_type = ? AND enabled = 1 ORDER BY id ASC`,
		subscriptionColumns,
	)
	return r.queryList(ctx, query, string(event))
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	return nil
}

func (r *Repository) RecordTestResult(ctx context.Context, id int64, status int, testedAt time.Time) error {
	const query = `UPDATE webhooks SET last_test_status = ?, last_tested_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, status, testedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("record test result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "webhook not found")
	}
	return nil
}

func (r *Repository) queryList(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	var event, createdStr string
	var testedStr sql.NullString
	var testStatus sql.NullInt64

	if err := row.Scan(&sub.ID, &sub.URL, &event, &sub.Enabled, &createdStr, &testedStr, &testStatus); err != nil {
		return nil, err
	}

	sub.Event = domain.Event(event)
	sub.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	if testedStr.Valid {
		t, err := time.Parse(time.RFC3339, testedStr.String)
		if err == nil {
			sub.LastTestedAt = &t
		}
	}
	if testStatus.Valid {
		status := int(testStatus.Int64)
		sub.LastTestStatus = &status
	}
	return sub, nil
}
