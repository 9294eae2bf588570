package promotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const promotionColumns = `id,product_id,discounted_price,validity_start,validity_end,created_at`

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, p *Promotion) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO promotions (id,product_id,discounted_price,validity_start,validity_end)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		p.ID, p.ProductID, p.DiscountedPrice, p.ValidityStart, p.ValidityEnd).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (r *postgresRepo) ActiveFor(ctx context.Context, productID uuid.UUID, now time.Time) (*Promotion, error) {
	p := &Promotion{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+promotionColumns+` FROM promotions
		WHERE product_id=$1 AND validity_start <= $2 AND validity_end >= $2
		ORDER BY validity_start DESC, discounted_price ASC, id ASC
		LIMIT 1`, productID, now).
		Scan(&p.ID, &p.ProductID, &p.DiscountedPrice, &p.ValidityStart, &p.ValidityEnd, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active promotion: %w", err)
	}
	return p, nil
}

func (r *postgresRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Promotion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+promotionColumns+` FROM promotions WHERE product_id=$1
		ORDER BY validity_start DESC, discounted_price ASC, id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Promotion
	for rows.Next() {
		p := &Promotion{}
		if err := rows.Scan(&p.ID, &p.ProductID, &p.DiscountedPrice, &p.ValidityStart, &p.ValidityEnd, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
