package handler

import (
	"strings"

	"storefront/internal/order/models"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

type TransitionRequest struct {
	Status workflow.Status `json:"status"`
	Note   string          `json:"note"`
}

func (r *TransitionRequest) Normalize() {
	r.Status = workflow.Status(strings.ToLower(strings.TrimSpace(string(r.Status))))
	r.Note = strings.TrimSpace(r.Note)
}

func (r *TransitionRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	if !r.Status.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown status %q", r.Status)
	}
	if len(r.Note) > 500 {
		return dErrors.New(dErrors.CodeValidation, "note must be at most 500 characters")
	}
	return nil
}

type PaymentStatusRequest struct {
	PaymentStatus workflow.PaymentStatus `json:"payment_status"`
	Note          string                 `json:"note"`
}

func (r *PaymentStatusRequest) Normalize() {
	r.PaymentStatus = workflow.PaymentStatus(strings.ToLower(strings.TrimSpace(string(r.PaymentStatus))))
	r.Note = strings.TrimSpace(r.Note)
}

func (r *PaymentStatusRequest) Validate() error {
	if !r.PaymentStatus.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown payment status %q", r.PaymentStatus)
	}
	if len(r.Note) > 500 {
		return dErrors.New(dErrors.CodeValidation, "note must be at most 500 characters")
	}
	return nil
}

type AssignRequest struct {
	DeliverymanID string `json:"deliveryman_id"`

	courier id.UserID
}

func (r *AssignRequest) Normalize() {
	r.DeliverymanID = strings.TrimSpace(r.DeliverymanID)
}

func (r *AssignRequest) Validate() error {
	courier, err := id.ParseUserID(r.DeliverymanID)
	if err != nil {
		return err
	}
	r.courier = courier
	return nil
}

// OrderResponse is an order plus the statuses the caller may move it to.
type OrderResponse struct {
	*models.Order
	NextStatuses []workflow.Status `json:"next_statuses"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toResponse(order *models.Order, role id.Role) OrderResponse {
	next := workflow.NextStatuses(role, order.Status)
	if next == nil {
		next = []workflow.Status{}
	}
	return OrderResponse{Order: order, NextStatuses: next}
}
