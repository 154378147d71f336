// Package workflow holds the order status rules: which role may move an
// order between which statuses, which role may see which orders, and which
// role may change payment state.
//
// Everything here is pure data plus lookups. No I/O, no side effects; the
// order service loads the order, asks this package, then writes.
package workflow

import (
	"slices"

	"storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

// RoleSystem is the actor for payment webhooks and background sweepers.
// It is never issued in a token.
const RoleSystem domain.Role = "system"

type edge struct {
	From Status
	To   Status
}

// transitions is the role-to-allowed-transition matrix.
var transitions = map[edge][]domain.Role{
	{StatusPending, StatusConfirmed}:        {domain.RoleAdmin, domain.RoleAccount, RoleSystem},
	{StatusPending, StatusCancelled}:        {domain.RoleAdmin, domain.RoleAccount, domain.RoleUser, RoleSystem},
	{StatusConfirmed, StatusProcessing}:     {domain.RoleAdmin, domain.RolePacker},
	{StatusConfirmed, StatusCancelled}:      {domain.RoleAdmin, domain.RoleAccount, domain.RoleUser},
	{StatusProcessing, StatusPacked}:        {domain.RoleAdmin, domain.RolePacker},
	{StatusProcessing, StatusCancelled}:     {domain.RoleAdmin},
	{StatusPacked, StatusShipped}:           {domain.RoleAdmin, domain.RoleDeliveryman},
	{StatusPacked, StatusCancelled}:         {domain.RoleAdmin},
	{StatusShipped, StatusOutForDelivery}:   {domain.RoleAdmin, domain.RoleDeliveryman},
	{StatusOutForDelivery, StatusDelivered}: {domain.RoleAdmin, domain.RoleDeliveryman},
	{StatusDelivered, StatusCompleted}:      {domain.RoleAdmin, domain.RoleAccount},
}

// visibility lists the statuses each staff role works with. Customers see
// their own orders regardless of status; that ownership check lives in the
// service because it needs the order's owner.
var visibility = map[domain.Role][]Status{
	domain.RoleAdmin:       Statuses,
	domain.RoleAccount:     Statuses,
	domain.RolePacker:      {StatusConfirmed, StatusProcessing, StatusPacked},
	domain.RoleDeliveryman: {StatusPacked, StatusShipped, StatusOutForDelivery, StatusDelivered},
	domain.RoleUser:        Statuses,
}

type paymentEdge struct {
	Method PaymentMethod
	From   PaymentStatus
	To     PaymentStatus
}

var paymentTransitions = map[paymentEdge][]domain.Role{
	{MethodCard, PaymentUnpaid, PaymentPending}: {RoleSystem},
	{MethodCard, PaymentPending, PaymentPaid}:   {domain.RoleAdmin, domain.RoleAccount, RoleSystem},
	{MethodCard, PaymentPending, PaymentFailed}: {domain.RoleAdmin, domain.RoleAccount, RoleSystem},
	{MethodCard, PaymentFailed, PaymentPending}: {domain.RoleAdmin, domain.RoleUser, RoleSystem},
	{MethodCard, PaymentPaid, PaymentRefunded}:  {domain.RoleAdmin, domain.RoleAccount, RoleSystem},
	{MethodCOD, PaymentPending, PaymentPaid}:    {domain.RoleAdmin, domain.RoleAccount, domain.RoleDeliveryman},
	{MethodCOD, PaymentPaid, PaymentRefunded}:   {domain.RoleAdmin, domain.RoleAccount, RoleSystem},
}

// CanTransition reports whether role may move an order from one status to another.
func CanTransition(role domain.Role, from, to Status) bool {
	return slices.Contains(transitions[edge{from, to}], role)
}

// CheckTransition is CanTransition with a reason. Unknown edges are invariant
// violations; known edges the role may not take are forbidden.
func CheckTransition(role domain.Role, from, to Status) error {
	if !to.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown status %q", to)
	}
	if from == to {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "order is already %s", to)
	}
	if from.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "order is %s and can no longer change", from)
	}
	roles, ok := transitions[edge{from, to}]
	if !ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot move order from %s to %s", from, to)
	}
	if !slices.Contains(roles, role) {
		return dErrors.Newf(dErrors.CodeForbidden, "%s cannot move order from %s to %s", role, from, to)
	}
	return nil
}

// State is the slice of an order the guards need.
type State struct {
	Status  Status
	Payment PaymentStatus
	Method  PaymentMethod
}

// CheckOrderTransition applies the matrix and the payment guards:
//   - a card order may not be confirmed or fulfilled until paid
//   - no order may complete until paid
func CheckOrderTransition(role domain.Role, st State, to Status) error {
	if err := CheckTransition(role, st.Status, to); err != nil {
		return err
	}
	if to == StatusCancelled {
		return nil
	}
	if st.Method == MethodCard && st.Payment != PaymentPaid {
		return dErrors.Newf(dErrors.CodePaymentRequired, "card order cannot move to %s while payment is %s", to, st.Payment)
	}
	if to == StatusCompleted && st.Payment != PaymentPaid {
		return dErrors.Newf(dErrors.CodePaymentRequired, "order cannot complete while payment is %s", st.Payment)
	}
	return nil
}

// NextStatuses lists the statuses role may move an order in from to, in
// fulfilment order.
func NextStatuses(role domain.Role, from Status) []Status {
	var next []Status
	for _, to := range Statuses {
		if CanTransition(role, from, to) {
			next = append(next, to)
		}
	}
	return next
}

// CanView reports whether role may see orders in status. For RoleUser this
// must be combined with an ownership check.
func CanView(role domain.Role, status Status) bool {
	return slices.Contains(visibility[role], status)
}

// VisibleStatuses returns a copy of the statuses role may see.
func VisibleStatuses(role domain.Role) []Status {
	return slices.Clone(visibility[role])
}

// SeesAll reports whether role has unrestricted order visibility.
func SeesAll(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleAccount
}

// CanSetPayment reports whether role may move payment from one status to another.
func CanSetPayment(role domain.Role, method PaymentMethod, from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[paymentEdge{method, from, to}], role)
}

// CheckPayment is CanSetPayment with a reason.
func CheckPayment(role domain.Role, method PaymentMethod, from, to PaymentStatus) error {
	if !to.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown payment status %q", to)
	}
	if from == to {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment is already %s", to)
	}
	roles, ok := paymentTransitions[paymentEdge{method, from, to}]
	if !ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot move %s payment from %s to %s", method, from, to)
	}
	if !slices.Contains(roles, role) {
		return dErrors.Newf(dErrors.CodeForbidden, "%s cannot move payment from %s to %s", role, from, to)
	}
	return nil
}
