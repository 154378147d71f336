package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"storefront/internal/order/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/httputil"
	request "storefront/pkg/platform/middleware/request"
)

const (
	SignatureHeader = "X-Signature"

	EventSucceeded = "payment.succeeded"
	EventFailed    = "payment.failed"

	maxWebhookBodySize = 64 << 10
)

// OrderPayments applies provider outcomes to orders.
type OrderPayments interface {
	ConfirmPayment(ctx context.Context, orderID id.OrderID, ref string) (*models.Order, error)
	FailPayment(ctx context.Context, orderID id.OrderID, ref string, reason string) (*models.Order, error)
}

// WebhookHandler receives signed provider callbacks. It is mounted outside
// RequireAuth; the HMAC signature is the authentication.
type WebhookHandler struct {
	orders  OrderPayments
	secret  []byte
	metrics *Metrics
	logger  *slog.Logger
}

func NewWebhookHandler(orders OrderPayments, secret string, metrics *Metrics, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{orders: orders, secret: []byte(secret), metrics: metrics, logger: logger}
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/payments/webhook", h.handleWebhook)
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

func (h *WebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}
	if !VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.WarnContext(ctx, "payment webhook signature rejected", "request_id", requestID)
		h.count("unknown", "bad_signature")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid signature"))
		return
	}
	if !gjson.ValidBytes(body) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON"))
		return
	}

	fields := gjson.GetManyBytes(body, "id", "type", "data.order_id", "data.payment_ref", "data.failure_reason")
	eventID, eventType := fields[0].String(), fields[1].String()
	ref := fields[3].String()

	if eventType != EventSucceeded && eventType != EventFailed {
		h.logger.InfoContext(ctx, "ignoring payment webhook event", "event_id", eventID, "type", eventType, "request_id", requestID)
		h.count(eventType, "ignored")
		httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Received: true, Outcome: "ignored"})
		return
	}

	orderID, err := id.ParseOrderID(fields[2].String())
	if err != nil {
		h.count(eventType, "bad_request")
		httputil.WriteError(w, err)
		return
	}

	if eventType == EventSucceeded {
		_, err = h.orders.ConfirmPayment(ctx, orderID, ref)
	} else {
		reason := fields[4].String()
		if reason == "" {
			reason = "payment declined"
		}
		_, err = h.orders.FailPayment(ctx, orderID, ref, reason)
	}

	if err != nil && !acknowledgeable(err) {
		h.logger.ErrorContext(ctx, "payment webhook processing failed",
			"event_id", eventID,
			"order_id", orderID.String(),
			"error", err,
			"request_id", requestID,
		)
		h.count(eventType, "error")
		httputil.WriteError(w, err)
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "ignored"
		h.logger.WarnContext(ctx, "payment webhook acknowledged without change",
			"event_id", eventID,
			"order_id", orderID.String(),
			"error", err,
			"request_id", requestID,
		)
	}
	h.count(eventType, outcome)
	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Received: true, Outcome: outcome})
}

// acknowledgeable errors will not change on redelivery, so the provider
// should stop retrying.
func acknowledgeable(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeConflict, dErrors.CodeInvariantViolation, dErrors.CodeForbidden:
		return true
	}
	return false
}

func (h *WebhookHandler) count(eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.IncrementWebhook(eventType, outcome)
	}
}

// VerifySignature checks a hex HMAC-SHA256 of body, with or without a
// "sha256=" prefix, in constant time.
func VerifySignature(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(Sign(secret, body), got)
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
