package models

import (
	"time"

	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

// LineItem is a priced snapshot of a product at checkout time.
type LineItem struct {
	ProductID id.ProductID `json:"product_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	UnitPrice int64        `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	LineTotal int64        `json:"line_total"`
}

// ShippingAddress is copied onto the order so later address edits do not
// rewrite history.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// HistoryEntry records one status or payment change for order tracking.
type HistoryEntry struct {
	Kind      HistoryKind `json:"kind"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	ActorID   string      `json:"actor_id,omitempty"`
	ActorRole id.Role     `json:"actor_role"`
	Note      string      `json:"note,omitempty"`
	At        time.Time   `json:"at"`
}

type HistoryKind string

const (
	HistoryStatus  HistoryKind = "status"
	HistoryPayment HistoryKind = "payment"
)

// Order is the aggregate root for a customer order.
//
// Invariants:
//   - Items is non-empty and every quantity is positive
//   - Total == Subtotal + ShippingFee
//   - Status and PaymentStatus only change through Apply* after the
//     workflow package has approved the move
//   - History is append-only
type Order struct {
	ID              id.OrderID             `json:"id"`
	Number          string                 `json:"number"`
	UserID          id.UserID              `json:"user_id"`
	Items           []LineItem             `json:"items"`
	Subtotal        int64                  `json:"subtotal"`
	ShippingFee     int64                  `json:"shipping_fee"`
	Total           int64                  `json:"total"`
	Currency        string                 `json:"currency"`
	Status          workflow.Status        `json:"status"`
	PaymentStatus   workflow.PaymentStatus `json:"payment_status"`
	PaymentMethod   workflow.PaymentMethod `json:"payment_method"`
	PaymentRef      string                 `json:"payment_ref,omitempty"`
	ShippingAddress ShippingAddress        `json:"shipping_address"`
	AssignedTo      *id.UserID             `json:"assigned_to,omitempty"`
	Note            string                 `json:"note,omitempty"`
	History         []HistoryEntry         `json:"history"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewOrder builds a pending order and prices it.
func NewOrder(
	orderID id.OrderID,
	userID id.UserID,
	items []LineItem,
	shippingFee int64,
	currency string,
	method workflow.PaymentMethod,
	address ShippingAddress,
	note string,
	now time.Time,
) (*Order, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "order requires a customer")
	}
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "order requires at least one item")
	}
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid payment method")
	}
	if shippingFee < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shipping fee cannot be negative")
	}

	var subtotal int64
	priced := make([]LineItem, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "item price cannot be negative")
		}
		item.LineTotal = item.UnitPrice * int64(item.Quantity)
		subtotal += item.LineTotal
		priced[i] = item
	}

	return &Order{
		ID:              orderID,
		Number:          OrderNumber(orderID, now),
		UserID:          userID,
		Items:           priced,
		Subtotal:        subtotal,
		ShippingFee:     shippingFee,
		Total:           subtotal + shippingFee,
		Currency:        currency,
		Status:          workflow.StatusPending,
		PaymentStatus:   method.InitialPayment(),
		PaymentMethod:   method,
		ShippingAddress: address,
		Note:            note,
		History:         []HistoryEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// State returns the fields the workflow guards need.
func (o *Order) State() workflow.State {
	return workflow.State{Status: o.Status, Payment: o.PaymentStatus, Method: o.PaymentMethod}
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID id.UserID) bool {
	return o.UserID == userID
}

// ApplyStatus moves the order and appends a history entry.
// Call only after workflow.CheckOrderTransition returned nil.
func (o *Order) ApplyStatus(to workflow.Status, actorID id.UserID, role id.Role, note string, now time.Time) {
	o.History = append(o.History, HistoryEntry{
		Kind:      HistoryStatus,
		From:      string(o.Status),
		To:        string(to),
		ActorID:   actorString(actorID),
		ActorRole: role,
		Note:      note,
		At:        now,
	})
	o.Status = to
	o.UpdatedAt = now
}

// ApplyPayment moves the payment status and appends a history entry.
// Call only after workflow.CheckPayment returned nil.
func (o *Order) ApplyPayment(to workflow.PaymentStatus, actorID id.UserID, role id.Role, note string, now time.Time) {
	o.History = append(o.History, HistoryEntry{
		Kind:      HistoryPayment,
		From:      string(o.PaymentStatus),
		To:        string(to),
		ActorID:   actorString(actorID),
		ActorRole: role,
		Note:      note,
		At:        now,
	})
	o.PaymentStatus = to
	o.UpdatedAt = now
}

// Quantities returns product quantities for stock reservation and release.
func (o *Order) Quantities() map[id.ProductID]int {
	out := make(map[id.ProductID]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

func actorString(actorID id.UserID) string {
	if actorID.IsNil() {
		return ""
	}
	return actorID.String()
}

// OrderNumber derives a short human-facing order number.
func OrderNumber(orderID id.OrderID, now time.Time) string {
	raw := orderID.String()
	return now.UTC().Format("060102") + "-" + raw[:8]
}
