package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

const orderColumns = `id,customer_id,subtotal,total,total_discount,applied_promotions,
	payment_method,cash_received,change,status,created_at,updated_at`

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// Create inserts the order and all its lines inside a single transaction.
func (r *postgresRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders
		  (id, customer_id, subtotal, total, total_discount, applied_promotions,
		   payment_method, cash_received, change, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		o.ID, o.CustomerID, o.Subtotal, o.Total, o.TotalDiscount, pq.Array(uuidStrings(o.AppliedPromotions)),
		nullableString(string(o.PaymentMethod)), o.CashReceived, o.Change, o.Status).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if err := insertLines(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("order", id)
	}
	o := orders[0]
	o.Lines, err = r.listLines(ctx, o.ID)
	return o, err
}

func (r *postgresRepo) List(ctx context.Context, status OrderStatus) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []interface{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.Lines, err = r.listLines(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *postgresRepo) Update(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET subtotal=$2, total=$3, total_discount=$4, updated_at=NOW() WHERE id=$1`,
		o.ID, o.Subtotal, o.Total, o.TotalDiscount)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", o.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id=$1`, o.ID); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	if err := insertLines(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *postgresRepo) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		o := &Order{}
		var (
			customerID uuid.NullUUID
			promotions pq.StringArray
			method     sql.NullString
		)
		if err := rows.Scan(&o.ID, &customerID, &o.Subtotal, &o.Total, &o.TotalDiscount, &promotions,
			&method, &o.CashReceived, &o.Change, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			id := customerID.UUID
			o.CustomerID = &id
		}
		o.PaymentMethod = PaymentMethod(method.String)
		for _, s := range promotions {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("parse applied promotion %q: %w", s, err)
			}
			o.AppliedPromotions = append(o.AppliedPromotions, id)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *postgresRepo) listLines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, pack, pack_size, purchase_price, selling_price_per_unit,
		       original_price, discount_amount, subtotal
		FROM order_lines WHERE order_id=$1 ORDER BY position ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Pack, &l.PackSize, &l.PurchasePrice,
			&l.SellingPricePerUnit, &l.OriginalPrice, &l.DiscountAmount, &l.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func insertLines(ctx context.Context, tx *sql.Tx, o *Order) error {
	for i, l := range o.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines
			  (order_id, position, product_id, quantity, pack, pack_size, purchase_price,
			   selling_price_per_unit, original_price, discount_amount, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			o.ID, i, l.ProductID, l.Quantity, l.Pack, l.PackSize, l.PurchasePrice,
			l.SellingPricePerUnit, l.OriginalPrice, l.DiscountAmount, l.Subtotal)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
