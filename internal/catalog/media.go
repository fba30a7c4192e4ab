package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/stockpilot/stockpilot/internal/platform/storage"
)

// MediaUpload carries one uploaded file.
type MediaUpload struct {
	Data        []byte
	ContentType string
}

// MediaResult holds the object URLs produced by the pipeline.
type MediaResult struct {
	ImageURL    string
	GalleryURLs []string
	QRURL       string
	BarcodeURL  string
}

// MediaPipeline uploads product media and generates QR/barcode labels.
// Label generation failures are logged and skipped; the product simply ends
// up without those URLs.
type MediaPipeline struct {
	store      storage.ObjectStore
	logger     *slog.Logger
	appBaseURL string
}

// NewMediaPipeline constructs the pipeline.
func NewMediaPipeline(store storage.ObjectStore, logger *slog.Logger, appBaseURL string) *MediaPipeline {
	return &MediaPipeline{store: store, logger: logger, appBaseURL: appBaseURL}
}

func mediaKey(workspaceID, productID, name string) string {
	return fmt.Sprintf("workspaces/%s/products/%s/%s", workspaceID, productID, name)
}

// Process uploads the primary image and gallery concurrently, then generates
// and uploads the QR and barcode labels. Image uploads are fatal; label
// generation is not.
func (m *MediaPipeline) Process(ctx context.Context, p Product, image *MediaUpload, gallery []MediaUpload) (MediaResult, error) {
	var result MediaResult
	if m == nil || m.store == nil {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if image != nil {
		g.Go(func() error {
			url, err := m.store.Put(gctx, mediaKey(p.WorkspaceID, p.ID, "image"), bytes.NewReader(image.Data), image.ContentType)
			if err != nil {
				return err
			}
			result.ImageURL = url
			return nil
		})
	}
	result.GalleryURLs = make([]string, len(gallery))
	for i, item := range gallery {
		i, item := i, item
		g.Go(func() error {
			key := mediaKey(p.WorkspaceID, p.ID, fmt.Sprintf("gallery/%d", i))
			url, err := m.store.Put(gctx, key, bytes.NewReader(item.Data), item.ContentType)
			if err != nil {
				return err
			}
			result.GalleryURLs[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("catalog: upload media: %w", err)
	}

	labels, lctx := errgroup.WithContext(ctx)
	labels.Go(func() error {
		url, err := m.uploadQR(lctx, p)
		if err != nil {
			m.logger.Warn("qr generation skipped", slog.String("product_id", p.ID), slog.Any("error", err))
			return nil
		}
		result.QRURL = url
		return nil
	})
	labels.Go(func() error {
		url, err := m.uploadBarcode(lctx, p)
		if err != nil {
			m.logger.Warn("barcode generation skipped", slog.String("product_id", p.ID), slog.Any("error", err))
			return nil
		}
		result.BarcodeURL = url
		return nil
	})
	_ = labels.Wait()

	return result, nil
}

func (m *MediaPipeline) uploadQR(ctx context.Context, p Product) (string, error) {
	content := fmt.Sprintf("%s/workspaces/%s/products/%s", m.appBaseURL, p.WorkspaceID, p.ID)
	data, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return m.store.Put(ctx, mediaKey(p.WorkspaceID, p.ID, "qr.png"), bytes.NewReader(data), "image/png")
}

func (m *MediaPipeline) uploadBarcode(ctx context.Context, p Product) (string, error) {
	code, err := code128.Encode(p.SKU)
	if err != nil {
		return "", err
	}
	scaled, err := barcode.Scale(code, 300, 100)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", err
	}
	return m.store.Put(ctx, mediaKey(p.WorkspaceID, p.ID, "barcode.png"), &buf, "image/png")
}
