package audit

import (
	"context"
	"time"

	id "storefront/pkg/domain"
)

// EventCategory classifies audit events so sinks can route and retain them
// differently.
type EventCategory string

const (
	// CategoryCommerce covers money and order lifecycle changes.
	CategoryCommerce EventCategory = "commerce"
	// CategorySecurity covers authentication and role changes.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine catalog and account activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from services to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	// UserID is the actor; nil for system actions.
	UserID    id.UserID
	ActorRole string
	// Subject is the entity acted on (order id, product id, user id).
	Subject   string
	Action    string
	From      string
	To        string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventUserRegistered  AuditEvent = "user_registered"
	EventLoginFailed     AuditEvent = "login_failed"
	EventRoleChanged     AuditEvent = "role_changed"
	EventProductCreated  AuditEvent = "product_created"
	EventProductUpdated  AuditEvent = "product_updated"
	EventProductArchived AuditEvent = "product_archived"
	EventOrderCreated    AuditEvent = "order_created"
	EventOrderStatus     AuditEvent = "order_status_changed"
	EventOrderPayment    AuditEvent = "order_payment_changed"
	EventOrderAssigned   AuditEvent = "order_assigned"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLoginFailed:     CategorySecurity,
	EventRoleChanged:     CategorySecurity,
	EventOrderCreated:    CategoryCommerce,
	EventOrderStatus:     CategoryCommerce,
	EventOrderPayment:    CategoryCommerce,
	EventOrderAssigned:   CategoryCommerce,
	EventUserRegistered:  CategoryOperations,
	EventProductCreated:  CategoryOperations,
	EventProductUpdated:  CategoryOperations,
	EventProductArchived: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
