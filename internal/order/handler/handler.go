package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront/internal/order/models"
	"storefront/internal/order/service"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
)

// Service is the order workflow the handler drives.
type Service interface {
	Get(ctx context.Context, actor service.Actor, orderID id.OrderID) (*models.Order, error)
	List(ctx context.Context, actor service.Actor, filter models.Filter) ([]*models.Order, error)
	Track(ctx context.Context, actor service.Actor, orderID id.OrderID) (*models.Tracking, error)
	Transition(ctx context.Context, actor service.Actor, orderID id.OrderID, to workflow.Status, note string) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, actor service.Actor, orderID id.OrderID, to workflow.PaymentStatus, note string) (*models.Order, error)
	Assign(ctx context.Context, actor service.Actor, orderID id.OrderID, courierID id.UserID) (*models.Order, error)
	Dashboard(ctx context.Context, actor service.Actor) (*models.Dashboard, error)
}

// Handler serves order endpoints. Routes expect RequireAuth upstream.
type Handler struct {
	orders Service
	logger *slog.Logger
}

func New(orders Service, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Get("/orders/{id}", h.handleGet)
	r.Get("/orders/{id}/tracking", h.handleTrack)
	r.Post("/orders/{id}/status", h.handleTransition)
	r.Post("/orders/{id}/payment-status", h.handleSetPayment)
	r.Post("/orders/{id}/assign", h.handleAssign)
	r.Get("/dashboard", h.handleDashboard)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := service.ActorFromContext(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	orders, err := h.orders.List(ctx, actor, filter)
	if err != nil {
		h.writeError(ctx, w, "list orders", err)
		return
	}
	filter.Page()
	resp := OrderListResponse{Orders: make([]OrderResponse, 0, len(orders)), Limit: filter.Limit, Offset: filter.Offset}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toResponse(o, actor.Role))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := service.ActorFromContext(ctx)
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := h.orders.Get(ctx, actor, orderID)
	if err != nil {
		h.writeError(ctx, w, "get order", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(order, actor.Role))
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tracking, err := h.orders.Track(ctx, service.ActorFromContext(ctx), orderID)
	if err != nil {
		h.writeError(ctx, w, "track order", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tracking)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := service.ActorFromContext(ctx)
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req TransitionRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := h.orders.Transition(ctx, actor, orderID, req.Status, req.Note)
	if err != nil {
		h.writeError(ctx, w, "transition order", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(order, actor.Role))
}

func (h *Handler) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := service.ActorFromContext(ctx)
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req PaymentStatusRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := h.orders.SetPaymentStatus(ctx, actor, orderID, req.PaymentStatus, req.Note)
	if err != nil {
		h.writeError(ctx, w, "set payment status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(order, actor.Role))
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := service.ActorFromContext(ctx)
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req AssignRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := h.orders.Assign(ctx, actor, orderID, req.courier)
	if err != nil {
		h.writeError(ctx, w, "assign order", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(order, actor.Role))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dash, err := h.orders.Dashboard(ctx, service.ActorFromContext(ctx))
	if err != nil {
		h.writeError(ctx, w, "load dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
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

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter
	for _, s := range splitList(q.Get("status")) {
		f.Statuses = append(f.Statuses, workflow.Status(s))
	}
	for _, s := range splitList(q.Get("payment_status")) {
		f.PaymentStatuses = append(f.PaymentStatuses, workflow.PaymentStatus(s))
	}
	if m := q.Get("method"); m != "" {
		f.Method = workflow.PaymentMethod(m)
		if !f.Method.IsValid() {
			return f, dErrors.Newf(dErrors.CodeValidation, "unknown payment method %q", m)
		}
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return f, err
	}
	return f, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
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
