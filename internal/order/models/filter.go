package models

import (
	"time"

	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter narrows order listings. Zero values mean "no constraint".
type Filter struct {
	UserID          *id.UserID
	AssignedTo      *id.UserID
	Statuses        []workflow.Status
	PaymentStatuses []workflow.PaymentStatus
	Method          workflow.PaymentMethod
	CreatedBefore   time.Time
	Limit           int
	Offset          int

	// IncludeUnassigned widens AssignedTo to also match orders nobody holds yet.
	IncludeUnassigned bool
}

// Page clamps Limit and Offset to sane bounds.
func (f *Filter) Page() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Stats aggregates orders for dashboards. Money totals are keyed by the
// currency the orders were priced in; amounts in different currencies are
// never added together.
type Stats struct {
	ByStatus       map[workflow.Status]int        `json:"by_status"`
	ByPayment      map[workflow.PaymentStatus]int `json:"by_payment"`
	Total          int                            `json:"total"`
	RevenuePaid    map[string]int64               `json:"revenue_paid"`
	OutstandingCOD map[string]int64               `json:"outstanding_cod"`
}

// NewStats returns zeroed stats with non-nil maps.
func NewStats() *Stats {
	return &Stats{
		ByStatus:       make(map[workflow.Status]int),
		ByPayment:      make(map[workflow.PaymentStatus]int),
		RevenuePaid:    make(map[string]int64),
		OutstandingCOD: make(map[string]int64),
	}
}

// Add folds one order into the aggregate.
func (s *Stats) Add(o *Order) {
	s.AddGroup(o.Status, o.PaymentStatus, o.PaymentMethod, o.Currency, 1, o.Total)
}

// AddGroup folds a pre-aggregated group (as returned by a SQL GROUP BY).
func (s *Stats) AddGroup(status workflow.Status, payment workflow.PaymentStatus, method workflow.PaymentMethod, currency string, count int, total int64) {
	s.Total += count
	s.ByStatus[status] += count
	s.ByPayment[payment] += count
	if payment == workflow.PaymentPaid {
		s.RevenuePaid[currency] += total
	}
	if method == workflow.MethodCOD && payment == workflow.PaymentPending && status != workflow.StatusCancelled {
		s.OutstandingCOD[currency] += total
	}
}

// HideMoney clears the revenue figures for roles that may not see them.
func (s *Stats) HideMoney() {
	clear(s.RevenuePaid)
	clear(s.OutstandingCOD)
}

// Tracking is the customer-facing timeline of an order.
type Tracking struct {
	OrderID       id.OrderID             `json:"order_id"`
	Number        string                 `json:"number"`
	Status        workflow.Status        `json:"status"`
	PaymentStatus workflow.PaymentStatus `json:"payment_status"`
	Steps         []TrackingStep         `json:"steps"`
}

// TrackingStep is one fulfilment milestone; At is nil until reached.
type TrackingStep struct {
	Status  workflow.Status `json:"status"`
	Reached bool            `json:"reached"`
	At      *time.Time      `json:"at,omitempty"`
}

// BuildTracking projects status history onto the fulfilment milestones.
// A cancelled order shows the milestones it reached followed by cancelled.
func BuildTracking(o *Order) *Tracking {
	reachedAt := map[workflow.Status]time.Time{workflow.StatusPending: o.CreatedAt}
	for _, h := range o.History {
		if h.Kind == HistoryStatus {
			reachedAt[workflow.Status(h.To)] = h.At
		}
	}

	t := &Tracking{OrderID: o.ID, Number: o.Number, Status: o.Status, PaymentStatus: o.PaymentStatus}
	for _, st := range workflow.Statuses {
		at, ok := reachedAt[st]
		if st == workflow.StatusCancelled {
			if ok {
				t.Steps = append(t.Steps, TrackingStep{Status: st, Reached: true, At: &at})
			}
			continue
		}
		if o.Status == workflow.StatusCancelled && !ok {
			continue
		}
		step := TrackingStep{Status: st, Reached: ok}
		if ok {
			step.At = &at
		}
		t.Steps = append(t.Steps, step)
	}
	return t
}

// Dashboard is the per-role back-office summary.
type Dashboard struct {
	Role    id.Role                               `json:"role"`
	Stats   *Stats                                `json:"stats"`
	Actions map[workflow.Status][]workflow.Status `json:"actions"`
}
