package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

const productColumns = `id,name,quantity,pack_size,purchase_price,selling_price_per_unit,
	selling_price_per_pack,expiration_date,statuses,discontinued,created_at,updated_at`

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, p *Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products
		  (id,name,quantity,pack_size,purchase_price,selling_price_per_unit,
		   selling_price_per_pack,expiration_date,statuses,discontinued)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Name, p.Quantity, p.PackSize, p.PurchasePrice, p.SellingPricePerUnit,
		p.SellingPricePerPack, p.ExpirationDate, pq.Array(statusStrings(p.Statuses)), p.Discontinued)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	return p, err
}

func (r *postgresRepo) List(ctx context.Context) ([]*Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at ASC`)
}

func (r *postgresRepo) ListByQuantity(ctx context.Context, qty int) ([]*Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE quantity=$1 ORDER BY created_at ASC`, qty)
}

// Apply is a compare-and-swap on the row: the WHERE clause rejects any delta that
// would take the quantity below zero, so concurrent writers cannot oversell.
func (r *postgresRepo) Apply(ctx context.Context, id uuid.UUID, c Change) (*Product, error) {
	var expiration interface{}
	if c.Expiration != nil {
		expiration = *c.Expiration
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    expiration_date = CASE WHEN $3::boolean THEN $4::timestamptz ELSE expiration_date END,
		    updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+productColumns,
		id, c.Delta, c.ReplaceExpiration, expiration))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.explainMiss(ctx, id, c.Delta)
	}
	return p, err
}

func (r *postgresRepo) SetQuantity(ctx context.Context, id uuid.UUID, qty int) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products SET quantity=$2, updated_at=NOW() WHERE id=$1
		RETURNING `+productColumns, id, qty))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	return p, err
}

func (r *postgresRepo) SetDiscontinued(ctx context.Context, id uuid.UUID, discontinued bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET discontinued=$2, updated_at=NOW() WHERE id=$1`, id, discontinued)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func (r *postgresRepo) UpdateStatuses(ctx context.Context, id uuid.UUID, statuses []StatusLabel) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET statuses=$2, updated_at=NOW() WHERE id=$1`,
		id, pq.Array(statusStrings(statuses)))
	return err
}

// ── helpers ──────────────────────────────────────────────────────────────────

// explainMiss tells a missing product apart from a rejected decrement.
func (r *postgresRepo) explainMiss(ctx context.Context, id uuid.UUID, delta int) error {
	var qty int
	err := r.db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id=$1`, id).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("product", id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("product %s: available=%d requested=%d: %w", id, qty, -delta, apperr.ErrInsufficientStock)
}

func (r *postgresRepo) query(ctx context.Context, query string, args ...interface{}) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanProduct(row rowScanner) (*Product, error) {
	p := &Product{}
	var expiration sql.NullTime
	var statuses pq.StringArray
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.PackSize, &p.PurchasePrice,
		&p.SellingPricePerUnit, &p.SellingPricePerPack, &expiration, &statuses,
		&p.Discontinued, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiration.Valid {
		t := expiration.Time.UTC()
		p.ExpirationDate = &t
	}
	for _, s := range statuses {
		p.Statuses = append(p.Statuses, StatusLabel(s))
	}
	return p, nil
}

func statusStrings(statuses []StatusLabel) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

