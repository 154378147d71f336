package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront/internal/catalog/models"
	"storefront/internal/currency"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
)

// Service is the catalog the handler serves.
type Service interface {
	Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, productID id.ProductID, req *models.UpdateProductRequest) (*models.Product, error)
	Archive(ctx context.Context, productID id.ProductID) error
	AdjustStock(ctx context.Context, productID id.ProductID, delta int) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error)
	Search(ctx context.Context, q string, limit int) ([]*models.Product, error)
}

// Handler serves the public product pages and the admin product console.
type Handler struct {
	catalog   Service
	converter *currency.Converter
	logger    *slog.Logger
}

func New(catalog Service, converter *currency.Converter, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, converter: converter, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.handleList)
	r.Get("/products/search", h.handleSearch)
	r.Get("/products/{slug}", h.handleGet)
}

// RegisterAdmin mounts product management. Callers guard it with RequireRole.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/products", h.handleCreate)
	r.Put("/admin/products/{id}", h.handleUpdate)
	r.Delete("/admin/products/{id}", h.handleArchive)
	r.Post("/admin/products/{id}/stock", h.handleAdjustStock)
}

type ProductResponse struct {
	*models.Product
	DisplayPrice    int64  `json:"display_price"`
	DisplayCurrency string `json:"display_currency"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Limit    int               `json:"limit,omitempty"`
	Offset   int               `json:"offset,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	display, err := h.converter.Normalize(q.Get("currency"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter := models.ListFilter{Category: q.Get("category"), Sort: models.Sort(q.Get("sort"))}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	products, err := h.catalog.List(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, "list products", err)
		return
	}
	resp, err := h.toList(products, display)
	if err != nil {
		h.writeError(ctx, w, "price products", err)
		return
	}
	filter.Page()
	resp.Limit, resp.Offset = filter.Limit, filter.Offset
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	display, err := h.converter.Normalize(q.Get("currency"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	products, err := h.catalog.Search(ctx, q.Get("q"), limit)
	if err != nil {
		h.writeError(ctx, w, "search products", err)
		return
	}
	resp, err := h.toList(products, display)
	if err != nil {
		h.writeError(ctx, w, "price products", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	display, err := h.converter.Normalize(r.URL.Query().Get("currency"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.catalog.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(ctx, w, "get product", err)
		return
	}
	resp, err := h.toResponse(p, display)
	if err != nil {
		h.writeError(ctx, w, "price product", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateProductRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.catalog.Create(ctx, &req)
	if err != nil {
		h.writeError(ctx, w, "create product", err)
		return
	}
	h.logger.InfoContext(ctx, "product created",
		"product_id", p.ID.String(),
		"slug", p.Slug,
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateProductRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.catalog.Update(ctx, productID, &req)
	if err != nil {
		h.writeError(ctx, w, "update product", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.catalog.Archive(ctx, productID); err != nil {
		h.writeError(ctx, w, "archive product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.AdjustStockRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.catalog.AdjustStock(ctx, productID, req.Delta)
	if err != nil {
		h.writeError(ctx, w, "adjust stock", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) toList(products []*models.Product, display string) (ProductListResponse, error) {
	resp := ProductListResponse{Products: make([]ProductResponse, 0, len(products))}
	for _, p := range products {
		view, err := h.toResponse(p, display)
		if err != nil {
			return resp, err
		}
		resp.Products = append(resp.Products, view)
	}
	return resp, nil
}

func (h *Handler) toResponse(p *models.Product, display string) (ProductResponse, error) {
	price, err := h.converter.Convert(p.Price, p.Currency, display)
	if err != nil {
		return ProductResponse{}, err
	}
	return ProductResponse{Product: p, DisplayPrice: price, DisplayCurrency: display}, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid number %q", raw)
	}
	return n, nil
}
