package catalog

import (
	"errors"
	"time"
)

// Product is the central inventory record, scoped to a workspace.
type Product struct {
	ID            string
	WorkspaceID   string
	SKU           string
	Name          string
	QuantityBox   int
	MinLevelBox   int
	PricePerBox   float64
	PcsPerBox     int
	CategoryID    string
	SubcategoryID string
	GroupID       string
	UOMID         string
	LeadTimeDays  int
	ImageURL      string
	GalleryURLs   []string
	QRURL         string
	BarcodeURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QtyOnHand returns the loose unit count derived from boxed quantity.
func (p Product) QtyOnHand() int {
	pcs := p.PcsPerBox
	if pcs <= 0 {
		pcs = 1
	}
	return p.QuantityBox * pcs
}

// TotalValue returns the stock value at the current box price.
func (p Product) TotalValue() float64 {
	return float64(p.QuantityBox) * p.PricePerBox
}

// Group is a hierarchical folder for organising products.
type Group struct {
	ID          string
	WorkspaceID string
	Name        string
	ParentID    string
	CreatedAt   time.Time
}

// Reference lookup records. All are workspace scoped with no relationships
// beyond foreign keys by id.
type (
	// UOM is a unit of measure.
	UOM struct {
		ID          string
		WorkspaceID string
		Name        string
		Abbrev      string
	}

	// Category groups products at the top level.
	Category struct {
		ID          string
		WorkspaceID string
		Name        string
	}

	// Subcategory refines a category.
	Subcategory struct {
		ID          string
		WorkspaceID string
		CategoryID  string
		Name        string
	}

	// CustomField is a user-defined product attribute definition.
	CustomField struct {
		ID          string
		WorkspaceID string
		Name        string
		FieldType   string
	}

	// StockReason labels manual stock adjustments.
	StockReason struct {
		ID          string
		WorkspaceID string
		Name        string
		Direction   string
	}
)

// Movement records a change in boxed quantity for a product. Movements feed
// the demand statistics used by replenishment reports.
type Movement struct {
	ID          string
	WorkspaceID string
	ProductID   string
	QtyBoxes    int
	ReasonID    string
	RefModule   string
	RefID       string
	Note        string
	OccurredAt  time.Time
}

// AdjustmentInput describes a manual stock adjustment. IdempotencyKey is
// optional; when set, a repeated submission with the same key is rejected.
type AdjustmentInput struct {
	ProductID      string
	QtyBoxes       int
	ReasonID       string
	Note           string
	IdempotencyKey string
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	GroupID    string
	CategoryID string
	Search     string
	Limit      int
	Offset     int
}

var (
	// ErrSKUExists indicates a duplicate SKU within a workspace.
	ErrSKUExists = errors.New("catalog: sku already exists")
	// ErrInvalidQuantity indicates a zero adjustment.
	ErrInvalidQuantity = errors.New("catalog: quantity must be non zero")
	// ErrNegativeStock triggered when an adjustment would drive stock below zero.
	ErrNegativeStock = errors.New("catalog: negative stock not allowed")
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrDuplicateAdjustment indicates an idempotency key replay.
	ErrDuplicateAdjustment = errors.New("catalog: adjustment already processed")
)
