package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Group operations

// ListGroups returns all groups for a workspace.
func (r *Repository) ListGroups(ctx context.Context, workspaceID string) ([]Group, error) {
	query := `SELECT id, workspace_id, name, COALESCE(parent_id, ''), created_at FROM groups WHERE workspace_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.WorkspaceID, &g.Name, &g.ParentID, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateGroup stores a group folder.
func (r *Repository) CreateGroup(ctx context.Context, g Group) (Group, error) {
	g.CreatedAt = time.Now()
	query := `INSERT INTO groups (id, workspace_id, name, parent_id, created_at) VALUES ($1, $2, $3, NULLIF($4, ''), $5)`
	_, err := r.pool.Exec(ctx, query, g.ID, g.WorkspaceID, g.Name, g.ParentID, g.CreatedAt)
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

// UpdateGroup renames or reparents a group.
func (r *Repository) UpdateGroup(ctx context.Context, g Group) error {
	query := `UPDATE groups SET name = $1, parent_id = NULLIF($2, '') WHERE workspace_id = $3 AND id = $4`
	tag, err := r.pool.Exec(ctx, query, g.Name, g.ParentID, g.WorkspaceID, g.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteGroup removes a group; products keep running with group_id cleared.
func (r *Repository) DeleteGroup(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET group_id = NULL WHERE workspace_id = $1 AND group_id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM groups WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// UOM operations

func (r *Repository) ListUOMs(ctx context.Context, workspaceID string) ([]UOM, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, name, abbrev FROM uoms WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var uoms []UOM
	for rows.Next() {
		var u UOM
		if err := rows.Scan(&u.ID, &u.WorkspaceID, &u.Name, &u.Abbrev); err != nil {
			return nil, err
		}
		uoms = append(uoms, u)
	}
	return uoms, rows.Err()
}

func (r *Repository) CreateUOM(ctx context.Context, u UOM) (UOM, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO uoms (id, workspace_id, name, abbrev) VALUES ($1, $2, $3, $4)`, u.ID, u.WorkspaceID, u.Name, u.Abbrev)
	if err != nil {
		return UOM{}, err
	}
	return u, nil
}

func (r *Repository) DeleteUOM(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM uoms WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// Category operations

func (r *Repository) ListCategories(ctx context.Context, workspaceID string) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, name FROM categories WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO categories (id, workspace_id, name) VALUES ($1, $2, $3)`, c.ID, c.WorkspaceID, c.Name)
	if err != nil {
		return Category{}, err
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// Subcategory operations

func (r *Repository) ListSubcategories(ctx context.Context, workspaceID, categoryID string) ([]Subcategory, error) {
	query := `SELECT id, workspace_id, category_id, name FROM subcategories WHERE workspace_id = $1`
	args := []any{workspaceID}
	if categoryID != "" {
		query += ` AND category_id = $2`
		args = append(args, categoryID)
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []Subcategory
	for rows.Next() {
		var s Subcategory
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &s.CategoryID, &s.Name); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *Repository) CreateSubcategory(ctx context.Context, s Subcategory) (Subcategory, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO subcategories (id, workspace_id, category_id, name) VALUES ($1, $2, $3, $4)`,
		s.ID, s.WorkspaceID, s.CategoryID, s.Name)
	if err != nil {
		return Subcategory{}, err
	}
	return s, nil
}

func (r *Repository) DeleteSubcategory(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM subcategories WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// CustomField operations

func (r *Repository) ListCustomFields(ctx context.Context, workspaceID string) ([]CustomField, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, name, field_type FROM custom_fields WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fields []CustomField
	for rows.Next() {
		var f CustomField
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.Name, &f.FieldType); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (r *Repository) CreateCustomField(ctx context.Context, f CustomField) (CustomField, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO custom_fields (id, workspace_id, name, field_type) VALUES ($1, $2, $3, $4)`,
		f.ID, f.WorkspaceID, f.Name, f.FieldType)
	if err != nil {
		return CustomField{}, err
	}
	return f, nil
}

func (r *Repository) DeleteCustomField(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM custom_fields WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// StockReason operations

func (r *Repository) ListStockReasons(ctx context.Context, workspaceID string) ([]StockReason, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, name, direction FROM stock_reasons WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reasons []StockReason
	for rows.Next() {
		var s StockReason
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &s.Name, &s.Direction); err != nil {
			return nil, err
		}
		reasons = append(reasons, s)
	}
	return reasons, rows.Err()
}

func (r *Repository) CreateStockReason(ctx context.Context, s StockReason) (StockReason, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_reasons (id, workspace_id, name, direction) VALUES ($1, $2, $3, $4)`,
		s.ID, s.WorkspaceID, s.Name, s.Direction)
	if err != nil {
		return StockReason{}, err
	}
	return s, nil
}

func (r *Repository) DeleteStockReason(ctx context.Context, workspaceID, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stock_reasons WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}
