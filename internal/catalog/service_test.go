package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products  map[string]Product
	movements []Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product)}
}

func (r *memoryRepo) InsertProduct(_ context.Context, p Product) (Product, error) {
	for _, existing := range r.products {
		if existing.WorkspaceID == p.WorkspaceID && existing.SKU == p.SKU {
			return Product{}, ErrSKUExists
		}
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) GetProduct(_ context.Context, workspaceID, id string) (Product, error) {
	p, ok := r.products[id]
	if !ok || p.WorkspaceID != workspaceID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetProductBySKU(_ context.Context, workspaceID, sku string) (Product, error) {
	for _, p := range r.products {
		if p.WorkspaceID == workspaceID && p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (r *memoryRepo) ListProducts(_ context.Context, workspaceID string, _ ProductFilter) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) CountProducts(ctx context.Context, workspaceID string, filter ProductFilter) (int, error) {
	products, err := r.ListProducts(ctx, workspaceID, filter)
	return len(products), err
}

func (r *memoryRepo) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	r.products[p.ID] = p
	return nil
}

func (r *memoryRepo) UpdateProductMedia(_ context.Context, _, id string, imageURL string, galleryURLs []string, qrURL, barcodeURL string) error {
	p, ok := r.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.ImageURL = imageURL
	p.GalleryURLs = galleryURLs
	p.QRURL = qrURL
	p.BarcodeURL = barcodeURL
	r.products[id] = p
	return nil
}

func (r *memoryRepo) DeleteProduct(_ context.Context, workspaceID, id string) error {
	if _, ok := r.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) ApplyAdjustment(_ context.Context, workspaceID string, m Movement) (Product, error) {
	p, ok := r.products[m.ProductID]
	if !ok || p.WorkspaceID != workspaceID {
		return Product{}, ErrProductNotFound
	}
	if p.QuantityBox+m.QtyBoxes < 0 {
		return Product{}, ErrNegativeStock
	}
	p.QuantityBox += m.QtyBoxes
	r.products[m.ProductID] = p
	r.movements = append(r.movements, m)
	return p, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, _, productID string, _ int) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeStore struct {
	objects map[string]string
	failOn  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]string)}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.failOn != "" && strings.Contains(key, s.failOn) {
		return "", errors.New("upload refused")
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	s.objects[key] = contentType
	return "https://cdn.test/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type countingBumper struct {
	count int
}

func (b *countingBumper) Bump(_ context.Context, _ string) error {
	b.count++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateProductPatchesMediaURLs(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStore()
	pipeline := NewMediaPipeline(store, testLogger(), "https://app.test")
	bumper := &countingBumper{}
	svc := NewService(repo, pipeline, bumper, nil, testLogger())

	product, err := svc.CreateProduct(context.Background(), "ws1",
		ProductInput{SKU: "SKU-1", Name: "Widget", QuantityBox: 4, PcsPerBox: 12, PricePerBox: 30},
		&MediaUpload{Data: []byte{0x89, 0x50}, ContentType: "image/png"},
		[]MediaUpload{{Data: []byte{0x01}, ContentType: "image/jpeg"}})
	require.NoError(t, err)
	require.NotEmpty(t, product.ImageURL)
	require.Len(t, product.GalleryURLs, 1)
	require.NotEmpty(t, product.QRURL)
	require.NotEmpty(t, product.BarcodeURL)
	require.Equal(t, 48, product.QtyOnHand())
	require.InDelta(t, 120.0, product.TotalValue(), 0.001)
	require.Equal(t, 1, bumper.count)

	stored := repo.products[product.ID]
	require.Equal(t, product.QRURL, stored.QRURL)
}

func TestCreateProductLabelFailureNonFatal(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStore()
	store.failOn = "qr.png"
	pipeline := NewMediaPipeline(store, testLogger(), "https://app.test")
	svc := NewService(repo, pipeline, nil, nil, testLogger())

	product, err := svc.CreateProduct(context.Background(), "ws1",
		ProductInput{SKU: "SKU-2", Name: "Gadget"}, nil, nil)
	require.NoError(t, err)
	require.Empty(t, product.QRURL)
	require.NotEmpty(t, product.BarcodeURL)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, testLogger())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, "ws1", ProductInput{SKU: "SKU-1", Name: "A"}, nil, nil)
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, "ws1", ProductInput{SKU: "SKU-1", Name: "B"}, nil, nil)
	require.ErrorIs(t, err, ErrSKUExists)
}

func TestAdjustStockGuards(t *testing.T) {
	repo := newMemoryRepo()
	bumper := &countingBumper{}
	svc := NewService(repo, nil, bumper, nil, testLogger())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "ws1", ProductInput{SKU: "SKU-1", Name: "A", QuantityBox: 5}, nil, nil)
	require.NoError(t, err)

	_, err = svc.AdjustStock(ctx, "ws1", AdjustmentInput{ProductID: product.ID, QtyBoxes: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AdjustStock(ctx, "ws1", AdjustmentInput{ProductID: product.ID, QtyBoxes: -6})
	require.ErrorIs(t, err, ErrNegativeStock)

	updated, err := svc.AdjustStock(ctx, "ws1", AdjustmentInput{ProductID: product.ID, QtyBoxes: -2, Note: "cycle count"})
	require.NoError(t, err)
	require.Equal(t, 3, updated.QuantityBox)

	movements, err := svc.ListMovements(ctx, "ws1", product.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, -2, movements[0].QtyBoxes)
	require.Equal(t, 2, bumper.count)
}

func TestMediaPipelineImageFailurePropagates(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStore()
	store.failOn = "/image"
	svc := NewService(repo, NewMediaPipeline(store, testLogger(), "https://app.test"), nil, nil, testLogger())

	created, err := svc.CreateProduct(context.Background(), "ws1",
		ProductInput{SKU: "SKU-3", Name: "C"},
		&MediaUpload{Data: []byte{0x01}, ContentType: "image/png"}, nil)
	require.Error(t, err)
	// The record is created before media runs; it stays behind without media.
	require.NotEmpty(t, created.ID)
	stored := repo.products[created.ID]
	require.Empty(t, stored.ImageURL)
}
