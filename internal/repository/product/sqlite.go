package product

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/acme/product-importer/internal/apperror"
	"github.com/acme/product-importer/internal/importer"
	domain "github.com/acme/product-importer/internal/product"
)

const upsertBatchSize = 500

type Repository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// UpsertRecords applies one work unit inside a single transaction: insert new
// SKUs, overwrite name/description (and stored casing) for existing ones.
// Active and timestamps are left to table defaults on insert and untouched on
// update. Callers guarantee unit SKUs are already deduplicated, which the
// multi-row ON CONFLICT form requires.
func (r *Repository) UpsertRecords(ctx context.Context, recs []importer.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert records: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for i := 0; i < len(recs); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(recs))
		batch := recs[i:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*3)
		for j, rec := range batch {
			placeholders[j] = "(?, ?, ?)"
			args = append(args, rec.SKU, rec.Name, rec.Description)
		}

		query := fmt.Sprintf(
			`INSERT INTO products (sku, name, description) VALUES %s
			ON CONFLICT(sku) DO UPDATE SET
				sku = excluded.sku,
				name = excluded.name,
				description = excluded.description,
				updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')`,
			strings.Join(placeholders, ", "),
		)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("upsert records: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert records: commit: %w", err)
	}
	return total, nil
}

func (r *Repository) List(ctx context.Context, f domain.ListFilter) ([]domain.Product, int64, error) {
	countQuery, countArgs, err := r.applyFilter(r.sb.Select("COUNT(*)").From("products"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	listBuilder := r.sb.
		Select("id", "sku", "name", "description", "active", "created_at", "updated_at").
		From("products")
	query, args, err := r.applyFilter(listBuilder, f).
		OrderBy("updated_at DESC", "id DESC").
		Limit(uint64(f.PerPage)).
		Offset(uint64((f.Page - 1) * f.PerPage)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *Repository) applyFilter(b sq.SelectBuilder, f domain.ListFilter) sq.SelectBuilder {
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		b = b.Where(sq.Or{
			sq.Like{"sku": pattern},
			sq.Like{"name": pattern},
			sq.Like{"description": pattern},
		})
	}
	if f.Active != nil {
		b = b.Where(sq.Eq{"active": *f.Active})
	}
	return b
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	const query = `SELECT id, sku, name, description, active, created_at, updated_at
		FROM products WHERE id = ?`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	const query = `INSERT INTO products (sku, name, description, active) VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, p.SKU, p.Name, p.Description, p.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Newf(apperror.Conflict, "a product with sku %q already exists", p.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}

	p.ID, _ = res.LastInsertId()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, p *domain.Product) error {
	const query = `UPDATE products SET sku = ?, name = ?, description = ?, active = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, p.SKU, p.Name, p.Description, p.Active, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Newf(apperror.Conflict, "a product with sku %q already exists", p.SKU)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "product not found")
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "product not found")
	}
	return nil
}

func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("delete all products: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var createdStr, updatedStr string

	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Active, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
