package purchasing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

const (
	orderColumns = `id,order_number,user_id,supplier_id,date,status,total,created_at,updated_at`
	counterName  = "purchase_order"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// Create increments the counter row and inserts the order inside one transaction,
// so concurrent creations never share a number.
func (r *postgresRepo) Create(ctx context.Context, po *PurchaseOrder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`, counterName).Scan(&po.OrderNumber)
	if err != nil {
		return fmt.Errorf("next purchase order number: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO purchase_orders (id,order_number,user_id,supplier_id,date,status,total)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		po.ID, po.OrderNumber, po.UserID, po.SupplierID, po.Date, po.Status, po.Total).
		Scan(&po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase order: %w", err)
	}
	if err := insertLines(ctx, tx, po); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	orders, err := r.query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("purchase order", id)
	}
	return orders[0], nil
}

func (r *postgresRepo) List(ctx context.Context, status Status) ([]*PurchaseOrder, error) {
	if status == "" {
		return r.query(ctx, `SELECT `+orderColumns+` FROM purchase_orders ORDER BY created_at ASC, order_number ASC`)
	}
	return r.query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE status=$1
		ORDER BY created_at ASC, order_number ASC`, status)
}

func (r *postgresRepo) ListPendingByProduct(ctx context.Context, productID uuid.UUID) ([]*PurchaseOrder, error) {
	return r.query(ctx, `
		SELECT `+orderColumns+` FROM purchase_orders po
		WHERE po.status = $1
		  AND EXISTS (SELECT 1 FROM purchase_order_lines l
		              WHERE l.purchase_order_id = po.id AND l.product_id = $2)
		ORDER BY po.created_at ASC, po.order_number ASC`, StatusPending, productID)
}

func (r *postgresRepo) Update(ctx context.Context, po *PurchaseOrder, expected Status) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		UPDATE purchase_orders
		SET supplier_id=$2, date=$3, status=$4, total=$5, updated_at=NOW()
		WHERE id=$1 AND status=$6
		RETURNING order_number, created_at, updated_at`,
		po.ID, po.SupplierID, po.Date, po.Status, po.Total, expected).
		Scan(&po.OrderNumber, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.explainMiss(ctx, tx, po.ID, expected)
	}
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id=$1`, po.ID); err != nil {
		return fmt.Errorf("delete purchase order lines: %w", err)
	}
	if err := insertLines(ctx, tx, po); err != nil {
		return err
	}
	return tx.Commit()
}

// explainMiss tells a missing order apart from one whose status moved on.
func (r *postgresRepo) explainMiss(ctx context.Context, tx *sql.Tx, id uuid.UUID, expected Status) error {
	var current Status
	err := tx.QueryRowContext(ctx, `SELECT status FROM purchase_orders WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("purchase order", id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("purchase order %s is %s, expected %s: %w", id, current, expected, apperr.ErrInvalidState)
}

func (r *postgresRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchase_orders SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update purchase order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.NotFound("purchase order", id)
	}
	return false, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete purchase order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("purchase order", id)
	}
	return nil
}

// query loads headers and then every matching line in one round trip.
func (r *postgresRepo) query(ctx context.Context, q string, args ...interface{}) ([]*PurchaseOrder, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*PurchaseOrder
	byID := map[uuid.UUID]*PurchaseOrder{}
	var ids []string
	for rows.Next() {
		po := &PurchaseOrder{}
		if err := rows.Scan(&po.ID, &po.OrderNumber, &po.UserID, &po.SupplierID, &po.Date,
			&po.Status, &po.Total, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, po)
		byID[po.ID] = po
		ids = append(ids, po.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT purchase_order_id,product_id,quantity,pack,expiration_date,purchase_price,cost,subtotal
		FROM purchase_order_lines
		WHERE purchase_order_id = ANY($1::uuid[])
		ORDER BY purchase_order_id, position ASC`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select purchase order lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			poID uuid.UUID
			l    Line
			exp  sql.NullTime
		)
		if err := lineRows.Scan(&poID, &l.ProductID, &l.Quantity, &l.Pack, &exp,
			&l.PurchasePrice, &l.Cost, &l.Subtotal); err != nil {
			return nil, err
		}
		if exp.Valid {
			t := exp.Time
			l.ExpirationDate = &t
		}
		byID[poID].Lines = append(byID[poID].Lines, l)
	}
	return orders, lineRows.Err()
}

func insertLines(ctx context.Context, tx *sql.Tx, po *PurchaseOrder) error {
	for i, l := range po.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_order_lines
			  (purchase_order_id,position,product_id,quantity,pack,expiration_date,purchase_price,cost,subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			po.ID, i, l.ProductID, l.Quantity, l.Pack, l.ExpirationDate, l.PurchasePrice, l.Cost, l.Subtotal)
		if err != nil {
			return fmt.Errorf("insert purchase order line: %w", err)
		}
	}
	return nil
}
