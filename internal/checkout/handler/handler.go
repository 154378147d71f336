package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/checkout/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
	"storefront/pkg/requestcontext"
)

type Service interface {
	Quote(ctx context.Context, userID id.UserID, display string) (*models.Quote, error)
	Checkout(ctx context.Context, userID id.UserID, req *models.Request) (*models.Result, error)
	RetryPayment(ctx context.Context, userID id.UserID, orderID id.OrderID) (*models.Result, error)
}

type Handler struct {
	checkout Service
	logger   *slog.Logger
}

func New(checkout Service, logger *slog.Logger) *Handler {
	return &Handler{checkout: checkout, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/checkout/quote", h.handleQuote)
	r.Post("/checkout", h.handleCheckout)
	r.Post("/orders/{id}/retry-payment", h.handleRetryPayment)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	quote, err := h.checkout.Quote(ctx, requestcontext.UserID(ctx), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(ctx, w, "quote checkout", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.Request
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.checkout.Checkout(ctx, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.writeError(ctx, w, "check out", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.checkout.RetryPayment(ctx, requestcontext.UserID(ctx), orderID)
	if err != nil {
		h.writeError(ctx, w, "retry payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
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
