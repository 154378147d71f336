package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/cart/models"
	catalogmodels "storefront/internal/catalog/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
	"storefront/pkg/requestcontext"
)

type Service interface {
	Add(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) (*models.View, error)
	SetQuantity(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) (*models.View, error)
	Remove(ctx context.Context, userID id.UserID, productID id.ProductID) (*models.View, error)
	Clear(ctx context.Context, userID id.UserID) error
	View(ctx context.Context, userID id.UserID, display string) (*models.View, error)
	AddFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error
	RemoveFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error
	Favorites(ctx context.Context, userID id.UserID) ([]*catalogmodels.Product, error)
}

// Handler serves the signed-in shopper's cart and favorites.
type Handler struct {
	cart   Service
	logger *slog.Logger
}

func New(cart Service, logger *slog.Logger) *Handler {
	return &Handler{cart: cart, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/cart", h.handleView)
	r.Post("/cart/items", h.handleAdd)
	r.Put("/cart/items/{productID}", h.handleSetQuantity)
	r.Delete("/cart/items/{productID}", h.handleRemove)
	r.Delete("/cart", h.handleClear)

	r.Get("/favorites", h.handleFavorites)
	r.Put("/favorites/{productID}", h.handleAddFavorite)
	r.Delete("/favorites/{productID}", h.handleRemoveFavorite)
}

type FavoritesResponse struct {
	Products []*catalogmodels.Product `json:"products"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.cart.View(ctx, requestcontext.UserID(ctx), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(ctx, w, "view cart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.AddItemRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.cart.Add(ctx, requestcontext.UserID(ctx), req.Product(), req.Quantity)
	if err != nil {
		h.writeError(ctx, w, "add to cart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.SetQuantityRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.cart.SetQuantity(ctx, requestcontext.UserID(ctx), productID, req.Quantity)
	if err != nil {
		h.writeError(ctx, w, "update cart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.cart.Remove(ctx, requestcontext.UserID(ctx), productID)
	if err != nil {
		h.writeError(ctx, w, "remove from cart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.cart.Clear(ctx, requestcontext.UserID(ctx)); err != nil {
		h.writeError(ctx, w, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.cart.Favorites(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, "list favorites", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FavoritesResponse{Products: products})
}

func (h *Handler) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.cart.AddFavorite(ctx, requestcontext.UserID(ctx), productID); err != nil {
		h.writeError(ctx, w, "add favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.cart.RemoveFavorite(ctx, requestcontext.UserID(ctx), productID); err != nil {
		h.writeError(ctx, w, "remove favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
