package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL. Every query is scoped by
// workspace_id; no cross-workspace reads are ever issued.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, workspace_id, sku, name, quantity_box, min_level_box, price_per_box, pcs_per_box,
	COALESCE(category_id, ''), COALESCE(subcategory_id, ''), COALESCE(group_id, ''), COALESCE(uom_id, ''),
	lead_time_days, image_url, gallery_urls, qr_url, barcode_url, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.SKU, &p.Name, &p.QuantityBox, &p.MinLevelBox,
		&p.PricePerBox, &p.PcsPerBox, &p.CategoryID, &p.SubcategoryID, &p.GroupID, &p.UOMID,
		&p.LeadTimeDays, &p.ImageURL, &p.GalleryURLs, &p.QRURL, &p.BarcodeURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// InsertProduct stores a new product row.
func (r *Repository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	query := `INSERT INTO products (id, workspace_id, sku, name, quantity_box, min_level_box, price_per_box, pcs_per_box,
		category_id, subcategory_id, group_id, uom_id, lead_time_days, image_url, gallery_urls, qr_url, barcode_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15, $16, $17, $18, $18)`
	_, err := r.pool.Exec(ctx, query, p.ID, p.WorkspaceID, p.SKU, p.Name, p.QuantityBox, p.MinLevelBox,
		p.PricePerBox, p.PcsPerBox, p.CategoryID, p.SubcategoryID, p.GroupID, p.UOMID, p.LeadTimeDays,
		p.ImageURL, p.GalleryURLs, p.QRURL, p.BarcodeURL, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrSKUExists
		}
		return Product{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// GetProduct fetches a product by id within a workspace.
func (r *Repository) GetProduct(ctx context.Context, workspaceID, id string) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE workspace_id = $1 AND id = $2`, productColumns)
	p, err := scanProduct(r.pool.QueryRow(ctx, query, workspaceID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// GetProductBySKU fetches a product by SKU within a workspace.
func (r *Repository) GetProductBySKU(ctx context.Context, workspaceID, sku string) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE workspace_id = $1 AND sku = $2`, productColumns)
	p, err := scanProduct(r.pool.QueryRow(ctx, query, workspaceID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// ListProducts returns products for a workspace with optional filters.
func (r *Repository) ListProducts(ctx context.Context, workspaceID string, filter ProductFilter) ([]Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE workspace_id = $1`, productColumns)
	args := []any{workspaceID}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(` AND group_id = $%d`, len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(` AND category_id = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY sku`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CountProducts returns how many products match the filter, ignoring limit
// and offset.
func (r *Repository) CountProducts(ctx context.Context, workspaceID string, filter ProductFilter) (int, error) {
	query := `SELECT COUNT(*) FROM products WHERE workspace_id = $1`
	args := []any{workspaceID}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(` AND group_id = $%d`, len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(` AND category_id = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d)`, len(args), len(args))
	}
	var total int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

// UpdateProduct replaces the editable fields of a product.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	query := `UPDATE products SET sku = $1, name = $2, min_level_box = $3, price_per_box = $4, pcs_per_box = $5,
		category_id = NULLIF($6, ''), subcategory_id = NULLIF($7, ''), group_id = NULLIF($8, ''), uom_id = NULLIF($9, ''),
		lead_time_days = $10, updated_at = $11
		WHERE workspace_id = $12 AND id = $13`
	tag, err := r.pool.Exec(ctx, query, p.SKU, p.Name, p.MinLevelBox, p.PricePerBox, p.PcsPerBox,
		p.CategoryID, p.SubcategoryID, p.GroupID, p.UOMID, p.LeadTimeDays, time.Now(), p.WorkspaceID, p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSKUExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// UpdateProductMedia patches the media URL fields written by the media pipeline.
func (r *Repository) UpdateProductMedia(ctx context.Context, workspaceID, id string, imageURL string, galleryURLs []string, qrURL, barcodeURL string) error {
	query := `UPDATE products SET image_url = $1, gallery_urls = $2, qr_url = $3, barcode_url = $4, updated_at = $5
		WHERE workspace_id = $6 AND id = $7`
	tag, err := r.pool.Exec(ctx, query, imageURL, galleryURLs, qrURL, barcodeURL, time.Now(), workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product.
func (r *Repository) DeleteProduct(ctx context.Context, workspaceID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ApplyAdjustment updates stock and records the movement atomically.
func (r *Repository) ApplyAdjustment(ctx context.Context, workspaceID string, m Movement) (Product, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var qty int
		err := tx.QueryRow(ctx, `SELECT quantity_box FROM products WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
			workspaceID, m.ProductID).Scan(&qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return err
		}
		if qty+m.QtyBoxes < 0 {
			return ErrNegativeStock
		}

		_, err = tx.Exec(ctx, `UPDATE products SET quantity_box = quantity_box + $1, updated_at = $2 WHERE workspace_id = $3 AND id = $4`,
			m.QtyBoxes, time.Now(), workspaceID, m.ProductID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO stock_movements (id, workspace_id, product_id, qty_boxes, reason_id, ref_module, ref_id, note, occurred_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
			m.ID, workspaceID, m.ProductID, m.QtyBoxes, m.ReasonID, m.RefModule, m.RefID, m.Note, m.OccurredAt)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, workspaceID, m.ProductID)
}

// ListMovements returns movements for a product newest first.
func (r *Repository) ListMovements(ctx context.Context, workspaceID, productID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT id, workspace_id, product_id, qty_boxes, COALESCE(reason_id, ''), ref_module, ref_id, note, occurred_at
		FROM stock_movements WHERE workspace_id = $1 AND product_id = $2 ORDER BY occurred_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, workspaceID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.ProductID, &m.QtyBoxes, &m.ReasonID, &m.RefModule, &m.RefID, &m.Note, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// OutboundSince returns, per product, total boxes moved out since the cutoff.
// Used to derive daily demand for replenishment reports.
func (r *Repository) OutboundSince(ctx context.Context, workspaceID string, since time.Time) (map[string][]DailyOutflow, error) {
	query := `SELECT product_id, date_trunc('day', occurred_at)::date, SUM(-qty_boxes)
		FROM stock_movements
		WHERE workspace_id = $1 AND occurred_at >= $2 AND qty_boxes < 0
		GROUP BY product_id, date_trunc('day', occurred_at)
		ORDER BY product_id`
	rows, err := r.pool.Query(ctx, query, workspaceID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]DailyOutflow)
	for rows.Next() {
		var productID string
		var day time.Time
		var qty float64
		if err := rows.Scan(&productID, &day, &qty); err != nil {
			return nil, err
		}
		result[productID] = append(result[productID], DailyOutflow{Day: day, Qty: qty})
	}
	return result, rows.Err()
}

// DailyOutflow is one day's outbound quantity for a product.
type DailyOutflow struct {
	Day time.Time
	Qty float64
}
