package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, workspaceID, id string) (Product, error)
	GetProductBySKU(ctx context.Context, workspaceID, sku string) (Product, error)
	ListProducts(ctx context.Context, workspaceID string, filter ProductFilter) ([]Product, error)
	CountProducts(ctx context.Context, workspaceID string, filter ProductFilter) (int, error)
	UpdateProduct(ctx context.Context, p Product) error
	UpdateProductMedia(ctx context.Context, workspaceID, id string, imageURL string, galleryURLs []string, qrURL, barcodeURL string) error
	DeleteProduct(ctx context.Context, workspaceID, id string) error
	ApplyAdjustment(ctx context.Context, workspaceID string, m Movement) (Product, error)
	ListMovements(ctx context.Context, workspaceID, productID string, limit int) ([]Movement, error)
}

// MediaPort abstracts the media pipeline.
type MediaPort interface {
	Process(ctx context.Context, p Product, image *MediaUpload, gallery []MediaUpload) (MediaResult, error)
}

// CacheBumper invalidates the cached product list after mutations.
type CacheBumper interface {
	Bump(ctx context.Context, workspaceID string) error
}

// Service coordinates catalog operations.
type Service struct {
	repo   RepositoryPort
	media  MediaPort
	cache  CacheBumper
	idem   *shared.IdempotencyStore
	logger *slog.Logger
}

// NewService builds Service. The idempotency store may be nil, in which case
// adjustment replay protection is disabled.
func NewService(repo RepositoryPort, media MediaPort, cache CacheBumper, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, media: media, cache: cache, idem: idem, logger: logger}
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	SKU           string `validate:"required"`
	Name          string `validate:"required"`
	QuantityBox   int    `validate:"gte=0"`
	MinLevelBox   int    `validate:"gte=0"`
	PricePerBox   float64
	PcsPerBox     int `validate:"gte=0"`
	CategoryID    string
	SubcategoryID string
	GroupID       string
	UOMID         string
	LeadTimeDays  int `validate:"gte=0"`
}

// CreateProduct runs the multi-step creation flow: insert the record, upload
// media, generate labels, then patch the media URLs back. The flow is not
// transactional; a failure after insert leaves a product without media fields.
func (s *Service) CreateProduct(ctx context.Context, workspaceID string, input ProductInput, image *MediaUpload, gallery []MediaUpload) (Product, error) {
	if workspaceID == "" {
		return Product{}, errors.New("catalog: workspace required")
	}
	p := Product{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		SKU:           strings.TrimSpace(input.SKU),
		Name:          strings.TrimSpace(input.Name),
		QuantityBox:   input.QuantityBox,
		MinLevelBox:   input.MinLevelBox,
		PricePerBox:   input.PricePerBox,
		PcsPerBox:     input.PcsPerBox,
		CategoryID:    input.CategoryID,
		SubcategoryID: input.SubcategoryID,
		GroupID:       input.GroupID,
		UOMID:         input.UOMID,
		LeadTimeDays:  input.LeadTimeDays,
	}
	created, err := s.repo.InsertProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}

	if s.media != nil {
		media, err := s.media.Process(ctx, created, image, gallery)
		if err != nil {
			// The record exists without media; surfaced to the caller so the
			// UI can offer a retry.
			s.logger.Error("product media pipeline failed", slog.String("product_id", created.ID), slog.Any("error", err))
			return created, err
		}
		if media.ImageURL != "" || len(media.GalleryURLs) > 0 || media.QRURL != "" || media.BarcodeURL != "" {
			if err := s.repo.UpdateProductMedia(ctx, workspaceID, created.ID, media.ImageURL, media.GalleryURLs, media.QRURL, media.BarcodeURL); err != nil {
				return created, err
			}
			created.ImageURL = media.ImageURL
			created.GalleryURLs = media.GalleryURLs
			created.QRURL = media.QRURL
			created.BarcodeURL = media.BarcodeURL
		}
	}

	s.bump(ctx, workspaceID)
	if input.QuantityBox > 0 {
		s.logger.Info("product created with opening stock",
			slog.String("sku", created.SKU),
			slog.Int("quantity_box", created.QuantityBox))
	}
	return created, nil
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, workspaceID, id string) (Product, error) {
	return s.repo.GetProduct(ctx, workspaceID, id)
}

// ListProducts lists products with filters.
func (s *Service) ListProducts(ctx context.Context, workspaceID string, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, workspaceID, filter)
}

// ListProductsPage returns one page of products plus pagination metadata.
func (s *Service) ListProductsPage(ctx context.Context, workspaceID string, filter ProductFilter, page, perPage int) ([]Product, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	total, err := s.repo.CountProducts(ctx, workspaceID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	products, err := s.repo.ListProducts(ctx, workspaceID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(page, perPage, total), nil
}

// UpdateProduct replaces editable fields.
func (s *Service) UpdateProduct(ctx context.Context, workspaceID, id string, input ProductInput) (Product, error) {
	existing, err := s.repo.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return Product{}, err
	}
	existing.SKU = strings.TrimSpace(input.SKU)
	existing.Name = strings.TrimSpace(input.Name)
	existing.MinLevelBox = input.MinLevelBox
	existing.PricePerBox = input.PricePerBox
	existing.PcsPerBox = input.PcsPerBox
	existing.CategoryID = input.CategoryID
	existing.SubcategoryID = input.SubcategoryID
	existing.GroupID = input.GroupID
	existing.UOMID = input.UOMID
	existing.LeadTimeDays = input.LeadTimeDays
	if err := s.repo.UpdateProduct(ctx, existing); err != nil {
		return Product{}, err
	}
	s.bump(ctx, workspaceID)
	return existing, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, workspaceID, id string) error {
	if err := s.repo.DeleteProduct(ctx, workspaceID, id); err != nil {
		return err
	}
	s.bump(ctx, workspaceID)
	return nil
}

// AdjustStock applies a manual quantity adjustment and records the movement.
func (s *Service) AdjustStock(ctx context.Context, workspaceID string, input AdjustmentInput) (Product, error) {
	if input.ProductID == "" {
		return Product{}, ErrProductNotFound
	}
	if input.QtyBoxes == 0 {
		return Product{}, ErrInvalidQuantity
	}
	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "catalog"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Product{}, ErrDuplicateAdjustment
			}
			return Product{}, err
		}
	}
	m := Movement{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ProductID:   input.ProductID,
		QtyBoxes:    input.QtyBoxes,
		ReasonID:    input.ReasonID,
		RefModule:   "catalog",
		Note:        input.Note,
		OccurredAt:  time.Now(),
	}
	p, err := s.repo.ApplyAdjustment(ctx, workspaceID, m)
	if err != nil {
		if s.idem != nil && input.IdempotencyKey != "" {
			if delErr := s.idem.Delete(ctx, input.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
			}
		}
		return Product{}, err
	}
	s.bump(ctx, workspaceID)
	return p, nil
}

// PostInbound records stock received on behalf of another module, e.g. a
// purchase order receipt.
func (s *Service) PostInbound(ctx context.Context, workspaceID, productID string, qtyBoxes int, refModule, refID, note string) (Product, error) {
	if qtyBoxes <= 0 {
		return Product{}, ErrInvalidQuantity
	}
	m := Movement{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ProductID:   productID,
		QtyBoxes:    qtyBoxes,
		RefModule:   refModule,
		RefID:       refID,
		Note:        note,
		OccurredAt:  time.Now(),
	}
	p, err := s.repo.ApplyAdjustment(ctx, workspaceID, m)
	if err != nil {
		return Product{}, err
	}
	s.bump(ctx, workspaceID)
	return p, nil
}

// ListMovements lists a product's movement history.
func (s *Service) ListMovements(ctx context.Context, workspaceID, productID string, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, workspaceID, productID, limit)
}

func (s *Service) bump(ctx context.Context, workspaceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, workspaceID); err != nil {
		s.logger.Warn("product cache bump failed", slog.String("workspace_id", workspaceID), slog.Any("error", err))
	}
}
