package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Get(ctx context.Context, customerID uuid.UUID) (*Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id,quantity,pack,price FROM cart_items
		WHERE customer_id=$1 ORDER BY position ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()
	c := &Cart{CustomerID: customerID}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Pack, &it.Price); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// Put replaces the customer's items in one transaction.
func (r *postgresRepo) Put(ctx context.Context, c *Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id=$1`, c.CustomerID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	for i, it := range c.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (customer_id,position,product_id,quantity,pack,price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.CustomerID, i, it.ProductID, it.Quantity, it.Pack, it.Price); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	return tx.Commit()
}

func (r *postgresRepo) Clear(ctx context.Context, customerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id=$1`, customerID)
	return err
}
