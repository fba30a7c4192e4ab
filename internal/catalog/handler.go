package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

const maxMediaBytes = 10 << 20

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	refs     *Repository
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service, refs *Repository) *Handler {
	return &Handler{logger: logger, service: service, refs: refs, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
		r.Post("/{id}/adjustments", h.adjustStock)
		r.Get("/{id}/movements", h.listMovements)
	})
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.listGroups)
		r.Post("/", h.createGroup)
		r.Put("/{id}", h.updateGroup)
		r.Delete("/{id}", h.deleteGroup)
	})
	r.Route("/uoms", func(r chi.Router) {
		r.Get("/", h.listUOMs)
		r.Post("/", h.createUOM)
		r.Delete("/{id}", h.deleteUOM)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
	r.Route("/subcategories", func(r chi.Router) {
		r.Get("/", h.listSubcategories)
		r.Post("/", h.createSubcategory)
		r.Delete("/{id}", h.deleteSubcategory)
	})
	r.Route("/custom-fields", func(r chi.Router) {
		r.Get("/", h.listCustomFields)
		r.Post("/", h.createCustomField)
		r.Delete("/{id}", h.deleteCustomField)
	})
	r.Route("/stock-reasons", func(r chi.Router) {
		r.Get("/", h.listStockReasons)
		r.Post("/", h.createStockReason)
		r.Delete("/{id}", h.deleteStockReason)
	})
}

type productForm struct {
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	QuantityBox   int     `json:"quantity_box"`
	MinLevelBox   int     `json:"min_level_box"`
	PricePerBox   float64 `json:"price_per_box"`
	PcsPerBox     int     `json:"pcs_per_box"`
	CategoryID    string  `json:"category_id"`
	SubcategoryID string  `json:"subcategory_id"`
	GroupID       string  `json:"group_id"`
	UOMID         string  `json:"uom_id"`
	LeadTimeDays  int     `json:"lead_time_days"`
}

func (f productForm) toInput() ProductInput {
	return ProductInput{
		SKU:           f.SKU,
		Name:          f.Name,
		QuantityBox:   f.QuantityBox,
		MinLevelBox:   f.MinLevelBox,
		PricePerBox:   f.PricePerBox,
		PcsPerBox:     f.PcsPerBox,
		CategoryID:    f.CategoryID,
		SubcategoryID: f.SubcategoryID,
		GroupID:       f.GroupID,
		UOMID:         f.UOMID,
		LeadTimeDays:  f.LeadTimeDays,
	}
}

type productResponse struct {
	ID            string   `json:"id"`
	SKU           string   `json:"sku"`
	Name          string   `json:"name"`
	QuantityBox   int      `json:"quantity_box"`
	MinLevelBox   int      `json:"min_level_box"`
	PricePerBox   float64  `json:"price_per_box"`
	PcsPerBox     int      `json:"pcs_per_box"`
	QtyOnHand     int      `json:"qty_on_hand"`
	TotalValue    float64  `json:"total_value"`
	CategoryID    string   `json:"category_id,omitempty"`
	SubcategoryID string   `json:"subcategory_id,omitempty"`
	GroupID       string   `json:"group_id,omitempty"`
	UOMID         string   `json:"uom_id,omitempty"`
	LeadTimeDays  int      `json:"lead_time_days"`
	ImageURL      string   `json:"image_url,omitempty"`
	GalleryURLs   []string `json:"gallery_urls,omitempty"`
	QRURL         string   `json:"qr_url,omitempty"`
	BarcodeURL    string   `json:"barcode_url,omitempty"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		QuantityBox:   p.QuantityBox,
		MinLevelBox:   p.MinLevelBox,
		PricePerBox:   p.PricePerBox,
		PcsPerBox:     p.PcsPerBox,
		QtyOnHand:     p.QtyOnHand(),
		TotalValue:    p.TotalValue(),
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
		GroupID:       p.GroupID,
		UOMID:         p.UOMID,
		LeadTimeDays:  p.LeadTimeDays,
		ImageURL:      p.ImageURL,
		GalleryURLs:   p.GalleryURLs,
		QRURL:         p.QRURL,
		BarcodeURL:    p.BarcodeURL,
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSKUExists), errors.Is(err, ErrDuplicateAdjustment):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	q := r.URL.Query()
	filter := ProductFilter{
		GroupID:    q.Get("group_id"),
		CategoryID: q.Get("category_id"),
		Search:     q.Get("search"),
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	products, pagination, err := h.service.ListProductsPage(r.Context(), ws, filter, page, perPage)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		h.respondDomainError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      out,
		"pagination": pagination,
	})
}

// createProduct accepts multipart form data: a "product" JSON part plus
// optional "image" and repeated "gallery" file parts.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())

	var form productForm
	var image *MediaUpload
	var gallery []MediaUpload

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxMediaBytes)
		if err := r.ParseMultipartForm(maxMediaBytes); err != nil {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
			return
		}
		if err := decodeJSONField(r.MultipartForm.Value["product"], &form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		var err error
		image, err = readFilePart(r.MultipartForm.File["image"])
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		for _, header := range r.MultipartForm.File["gallery"] {
			item, err := readFileHeader(header)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
				return
			}
			gallery = append(gallery, *item)
		}
	} else {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}

	input := form.toInput()
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.service.CreateProduct(r.Context(), ws, input, image, gallery)
	if err != nil {
		if product.ID != "" {
			// Record exists but media is incomplete; report the partial result.
			httpx.JSON(w, http.StatusCreated, toProductResponse(product))
			return
		}
		h.logger.Error("create product", slog.Any("error", err))
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	product, err := h.service.GetProduct(r.Context(), ws, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form productForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := form.toInput()
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), ws, chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.service.DeleteProduct(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustmentForm struct {
	QtyBoxes int    `json:"qty_boxes"`
	ReasonID string `json:"reason_id"`
	Note     string `json:"note"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form adjustmentForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	product, err := h.service.AdjustStock(r.Context(), ws, AdjustmentInput{
		ProductID:      chi.URLParam(r, "id"),
		QtyBoxes:       form.QtyBoxes,
		ReasonID:       form.ReasonID,
		Note:           form.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), ws, chi.URLParam(r, "id"), limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func decodeJSONField(values []string, target any) error {
	if len(values) == 0 {
		return errors.New("catalog: product part required")
	}
	return json.Unmarshal([]byte(values[0]), target)
}

func readFilePart(headers []*multipart.FileHeader) (*MediaUpload, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	return readFileHeader(headers[0])
}

func readFileHeader(header *multipart.FileHeader) (*MediaUpload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &MediaUpload{Data: data, ContentType: contentType}, nil
}
