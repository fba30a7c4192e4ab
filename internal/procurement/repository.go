package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const poColumns = `id, workspace_id, number, vendor_id, COALESCE(ship_to_id, ''), status, note,
	COALESCE(submitted_at, 'epoch'), COALESCE(approved_at, 'epoch'), COALESCE(ordered_at, 'epoch'),
	COALESCE(expected_at, 'epoch'), COALESCE(received_at, 'epoch'), created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.WorkspaceID, &po.Number, &po.VendorID, &po.ShipToID, &po.Status, &po.Note,
		&po.SubmittedAt, &po.ApprovedAt, &po.OrderedAt, &po.ExpectedAt, &po.ReceivedAt, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

// Insert stores a new order and its lines.
func (r *Repository) Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	now := time.Now()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO purchase_orders (id, workspace_id, number, vendor_id, ship_to_id, status, note, expected_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, 'epoch'::timestamptz), $9, $9)`,
			po.ID, po.WorkspaceID, po.Number, po.VendorID, po.ShipToID, po.Status, po.Note, po.ExpectedAt, now)
		if err != nil {
			return err
		}
		for _, line := range po.Lines {
			_, err = tx.Exec(ctx, `INSERT INTO purchase_order_lines (id, po_id, product_id, qty_boxes, received_boxes, unit_price)
				VALUES ($1, $2, $3, $4, 0, $5)`,
				line.ID, po.ID, line.ProductID, line.QtyBoxes, line.UnitPrice)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.CreatedAt = now
	po.UpdatedAt = now
	return po, nil
}

// Get fetches one order with lines.
func (r *Repository) Get(ctx context.Context, workspaceID, id string) (PurchaseOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE workspace_id = $1 AND id = $2`, poColumns)
	po, err := scanOrder(r.pool.QueryRow(ctx, query, workspaceID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Lines, err = r.lines(ctx, id)
	return po, err
}

func (r *Repository) lines(ctx context.Context, poID string) ([]POLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, product_id, qty_boxes, received_boxes, unit_price
		FROM purchase_order_lines WHERE po_id = $1 ORDER BY product_id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ProductID, &line.QtyBoxes, &line.ReceivedBox, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns orders for a workspace, optionally filtered by status.
func (r *Repository) List(ctx context.Context, workspaceID string, status POStatus) ([]PurchaseOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE workspace_id = $1`, poColumns)
	args := []any{workspaceID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order to a new status stamping the matching milestone.
func (r *Repository) UpdateStatus(ctx context.Context, workspaceID, id string, status POStatus, at time.Time) error {
	column := ""
	switch status {
	case POStatusSubmitted:
		column = "submitted_at"
	case POStatusApproved:
		column = "approved_at"
	case POStatusOrdered:
		column = "ordered_at"
	case POStatusReceived:
		column = "received_at"
	}
	query := `UPDATE purchase_orders SET status = $1, updated_at = $2`
	args := []any{status, at}
	if column != "" {
		query += fmt.Sprintf(`, %s = $3`, column)
		args = append(args, at)
	}
	args = append(args, workspaceID, id)
	query += fmt.Sprintf(` WHERE workspace_id = $%d AND id = $%d`, len(args)-1, len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// OpenOrderQty sums outstanding boxes per product across orders that are
// approved, ordered or partially received.
func (r *Repository) OpenOrderQty(ctx context.Context, workspaceID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.product_id, SUM(l.qty_boxes - l.received_boxes)
		FROM purchase_order_lines l
		JOIN purchase_orders po ON po.id = l.po_id
		WHERE po.workspace_id = $1
		  AND po.status IN ($2, $3, $4)
		  AND l.qty_boxes > l.received_boxes
		GROUP BY l.product_id`,
		workspaceID, POStatusApproved, POStatusOrdered, POStatusPartiallyReceived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	open := make(map[string]int)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		open[productID] = qty
	}
	return open, rows.Err()
}

// AddReceived accumulates received quantity on a line.
func (r *Repository) AddReceived(ctx context.Context, lineID string, qtyBox int) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchase_order_lines SET received_boxes = received_boxes + $1 WHERE id = $2`, qtyBox, lineID)
	return err
}
