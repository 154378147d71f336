package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
	"storefront/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.TokenResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error)
	Me(ctx context.Context, userID id.UserID) (*models.User, error)
	SetRole(ctx context.Context, actorID id.UserID, userID id.UserID, role id.Role) (*models.User, error)

	ListAddresses(ctx context.Context, userID id.UserID) ([]*models.Address, error)
	CreateAddress(ctx context.Context, userID id.UserID, req *models.AddressRequest) (*models.Address, error)
	UpdateAddress(ctx context.Context, userID id.UserID, addressID id.AddressID, req *models.AddressRequest) (*models.Address, error)
	DeleteAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) error
}

// Handler serves sign-up, sign-in, the account and its address book.
type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// RegisterAuth mounts the unauthenticated credential endpoints.
func (h *Handler) RegisterAuth(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterAccount mounts endpoints for the signed-in user.
func (h *Handler) RegisterAccount(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Get("/me/addresses", h.handleListAddresses)
	r.Post("/me/addresses", h.handleCreateAddress)
	r.Put("/me/addresses/{addressID}", h.handleUpdateAddress)
	r.Delete("/me/addresses/{addressID}", h.handleDeleteAddress)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/users/{userID}/role", h.handleSetRole)
}

type AddressListResponse struct {
	Addresses []*models.Address `json:"addresses"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RegisterRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.identity.Register(ctx, &req)
	if err != nil {
		h.writeError(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.LoginRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.identity.Login(ctx, &req)
	if err != nil {
		h.writeError(ctx, w, "login", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.identity.Me(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, "load account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addrs, err := h.identity.ListAddresses(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, "list addresses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AddressListResponse{Addresses: addrs})
}

func (h *Handler) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.AddressRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.identity.CreateAddress(ctx, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.writeError(ctx, w, "create address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addressID, err := id.ParseAddressID(chi.URLParam(r, "addressID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.AddressRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.identity.UpdateAddress(ctx, requestcontext.UserID(ctx), addressID, &req)
	if err != nil {
		h.writeError(ctx, w, "update address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addressID, err := id.ParseAddressID(chi.URLParam(r, "addressID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.identity.DeleteAddress(ctx, requestcontext.UserID(ctx), addressID); err != nil {
		h.writeError(ctx, w, "delete address", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.RoleRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.identity.SetRole(ctx, requestcontext.UserID(ctx), userID, req.Parsed())
	if err != nil {
		h.writeError(ctx, w, "set role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
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
