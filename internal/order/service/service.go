package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/order/metrics"
	"storefront/internal/order/models"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	audit "storefront/pkg/platform/audit"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
	"storefront/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Order, error)
	Stats(ctx context.Context, filter models.Filter) (*models.Stats, error)
}

// Inventory returns reserved stock to the catalog.
type Inventory interface {
	Release(ctx context.Context, quantities map[id.ProductID]int) error
}

// PaymentGateway refunds captured card payments.
type PaymentGateway interface {
	Refund(ctx context.Context, ref string, amount int64) error
}

// UserDirectory resolves the role of a prospective assignee.
type UserDirectory interface {
	RoleOf(ctx context.Context, userID id.UserID) (id.Role, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Actor is the user and role acting on an order.
type Actor struct {
	UserID id.UserID
	Role   id.Role
}

// System acts for webhooks and background jobs.
var System = Actor{Role: workflow.RoleSystem}

// ActorFromContext reads the authenticated actor set by the auth middleware.
func ActorFromContext(ctx context.Context) Actor {
	return Actor{UserID: requestcontext.UserID(ctx), Role: requestcontext.Role(ctx)}
}

// Service applies the status and payment workflow to stored orders.
// Every mutation runs load, check, apply and write inside one transaction.
type Service struct {
	store          Store
	inventory      Inventory
	payments       PaymentGateway
	users          UserDirectory
	tx             txcontext.Runner
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithPaymentGateway(gateway PaymentGateway) Option {
	return func(s *Service) { s.payments = gateway }
}

func WithUserDirectory(users UserDirectory) Option {
	return func(s *Service) { s.users = users }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

func New(store Store, inventory Inventory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		inventory: inventory,
		tx:        txcontext.NewMemoryRunner(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("storefront/order"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a freshly built order. Checkout calls this after reserving
// stock and releases the reservation if it fails.
func (s *Service) Create(ctx context.Context, actor Actor, order *models.Order) error {
	if err := s.store.Create(ctx, order); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "order already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create order")
	}
	if err := s.emit(ctx, actor, audit.EventOrderCreated, order, "", string(order.Status), ""); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementCreated(string(order.PaymentMethod))
	}
	return nil
}

// Get returns an order the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor Actor, orderID id.OrderID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Track returns the milestone timeline of an order.
func (s *Service) Track(ctx context.Context, actor Actor, orderID id.OrderID) (*models.Tracking, error) {
	order, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return models.BuildTracking(order), nil
}

// List returns orders newest first, narrowed to what the actor may see.
func (s *Service) List(ctx context.Context, actor Actor, filter models.Filter) ([]*models.Order, error) {
	scoped, empty, err := scopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	if empty {
		return []*models.Order{}, nil
	}
	orders, err := s.store.List(ctx, scoped)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list orders")
	}
	return orders, nil
}

// Dashboard summarizes the orders visible to the actor along with the moves
// the actor may make from each status. Revenue figures are only reported to
// admin and account.
func (s *Service) Dashboard(ctx context.Context, actor Actor) (*models.Dashboard, error) {
	scoped, empty, err := scopeFilter(actor, models.Filter{})
	if err != nil {
		return nil, err
	}
	stats := models.NewStats()
	if !empty {
		stats, err = s.store.Stats(ctx, scoped)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load order stats")
		}
	}
	if !workflow.SeesAll(actor.Role) {
		stats.HideMoney()
	}

	actions := make(map[workflow.Status][]workflow.Status)
	for _, st := range workflow.VisibleStatuses(actor.Role) {
		if next := workflow.NextStatuses(actor.Role, st); len(next) > 0 {
			actions[st] = next
		}
	}
	return &models.Dashboard{Role: actor.Role, Stats: stats, Actions: actions}, nil
}

// Transition moves an order to a new status. Cancelling returns stock to the
// catalog and refunds a captured payment.
func (s *Service) Transition(ctx context.Context, actor Actor, orderID id.OrderID, to workflow.Status, note string) (*models.Order, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "order.Transition", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.to", string(to)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	var (
		updated   *models.Order
		from      workflow.Status
		refundDue bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeView(actor, order); err != nil {
			return err
		}
		if err := workflow.CheckOrderTransition(actor.Role, order.State(), to); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		from = order.Status
		order.ApplyStatus(to, actor.UserID, actor.Role, note, now)
		if actor.Role == id.RoleDeliveryman && order.AssignedTo == nil {
			courier := actor.UserID
			order.AssignedTo = &courier
		}

		refunded := false
		if to == workflow.StatusCancelled {
			if err := s.inventory.Release(ctx, order.Quantities()); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release stock")
			}
			if order.PaymentStatus == workflow.PaymentPaid {
				if s.refundsAtGateway(order) {
					refundDue = true
				} else {
					if err := recordRefund(order, "refund on cancellation", now); err != nil {
						return err
					}
					refunded = true
				}
			}
		}

		if err := s.store.Update(ctx, order); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order")
		}
		if err := s.emit(ctx, actor, audit.EventOrderStatus, order, string(from), string(to), note); err != nil {
			return err
		}
		if refunded {
			if err := s.emit(ctx, System, audit.EventOrderPayment, order, string(workflow.PaymentPaid), string(workflow.PaymentRefunded), "refund on cancellation"); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		s.denied(ctx, span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementStatus(string(from), string(to), string(actor.Role))
		s.metrics.ObserveTransition(start)
	}
	s.logger.InfoContext(ctx, "order status changed",
		"order_id", orderID.String(),
		"from", from,
		"to", to,
		"actor_role", actor.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	if refundDue {
		updated = s.settleOrDefer(ctx, updated, "refund on cancellation")
	}
	return updated, nil
}

// SetPaymentStatus records a manual payment change, such as cash collected
// on delivery or an accountant marking a transfer as received.
func (s *Service) SetPaymentStatus(ctx context.Context, actor Actor, orderID id.OrderID, to workflow.PaymentStatus, note string) (*models.Order, error) {
	if to == workflow.PaymentRefunded {
		return s.settleRefund(ctx, actor, orderID, note)
	}
	return s.changePayment(ctx, actor, orderID, to, note, nil)
}

// AttachPaymentIntent stores the gateway reference for a card order and
// moves its payment to pending. Checkout uses it with System on a new order
// and customers use it to retry a failed payment.
func (s *Service) AttachPaymentIntent(ctx context.Context, actor Actor, orderID id.OrderID, ref string) (*models.Order, error) {
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "payment reference is required")
	}
	return s.changePayment(ctx, actor, orderID, workflow.PaymentPending, "payment intent created", func(_ context.Context, order *models.Order) error {
		if order.Status == workflow.StatusCancelled {
			return dErrors.New(dErrors.CodeInvariantViolation, "order is cancelled")
		}
		order.PaymentRef = ref
		return nil
	})
}

// ConfirmPayment marks a card payment captured and confirms a pending order.
// Repeated deliveries of the same confirmation are no-ops. A payment that
// lands after the order was cancelled is refunded.
func (s *Service) ConfirmPayment(ctx context.Context, orderID id.OrderID, ref string) (*models.Order, error) {
	var (
		updated   *models.Order
		refundDue bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := matchRef(order, ref); err != nil {
			return err
		}
		if order.PaymentStatus == workflow.PaymentPaid || order.PaymentStatus == workflow.PaymentRefunded {
			updated = order
			return nil
		}
		if err := workflow.CheckPayment(System.Role, order.PaymentMethod, order.PaymentStatus, workflow.PaymentPaid); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		fromPayment := order.PaymentStatus
		order.ApplyPayment(workflow.PaymentPaid, System.UserID, System.Role, "payment captured", now)

		confirmed := false
		refunded := false
		switch order.Status {
		case workflow.StatusPending:
			if err := workflow.CheckOrderTransition(System.Role, order.State(), workflow.StatusConfirmed); err != nil {
				return err
			}
			order.ApplyStatus(workflow.StatusConfirmed, System.UserID, System.Role, "payment captured", now)
			confirmed = true
		case workflow.StatusCancelled:
			if s.refundsAtGateway(order) {
				refundDue = true
				break
			}
			if err := recordRefund(order, "payment received after cancellation", now); err != nil {
				return err
			}
			refunded = true
		}

		if err := s.store.Update(ctx, order); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order")
		}
		if err := s.emit(ctx, System, audit.EventOrderPayment, order, string(fromPayment), string(workflow.PaymentPaid), ""); err != nil {
			return err
		}
		if confirmed {
			if err := s.emit(ctx, System, audit.EventOrderStatus, order, string(workflow.StatusPending), string(workflow.StatusConfirmed), ""); err != nil {
				return err
			}
		}
		if refunded {
			if err := s.emit(ctx, System, audit.EventOrderPayment, order, string(workflow.PaymentPaid), string(workflow.PaymentRefunded), "payment received after cancellation"); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment confirmation rejected", "order_id", orderID.String(), "error", err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementPayment(string(workflow.PaymentPending), string(workflow.PaymentPaid), string(System.Role))
	}
	if refundDue {
		updated = s.settleOrDefer(ctx, updated, "payment received after cancellation")
	}
	return updated, nil
}

// FailPayment records a declined card payment. Repeats are no-ops.
func (s *Service) FailPayment(ctx context.Context, orderID id.OrderID, ref string, reason string) (*models.Order, error) {
	return s.changePayment(ctx, System, orderID, workflow.PaymentFailed, reason, func(_ context.Context, order *models.Order) error {
		return matchRef(order, ref)
	})
}

// Assign hands an order to a deliveryman. Only admins assign.
func (s *Service) Assign(ctx context.Context, actor Actor, orderID id.OrderID, courierID id.UserID) (*models.Order, error) {
	if actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins can assign orders")
	}
	if s.users != nil {
		role, err := s.users.RoleOf(ctx, courierID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "assignee not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assignee")
		}
		if role != id.RoleDeliveryman {
			return nil, dErrors.New(dErrors.CodeValidation, "assignee must be a deliveryman")
		}
	}

	var updated *models.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if !workflow.CanView(id.RoleDeliveryman, order.Status) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "orders in status %s cannot be assigned", order.Status)
		}
		previous := ""
		if order.AssignedTo != nil {
			previous = order.AssignedTo.String()
		}
		order.AssignedTo = &courierID
		order.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, order); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order")
		}
		if err := s.emit(ctx, actor, audit.EventOrderAssigned, order, previous, courierID.String(), ""); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelStale cancels card orders created before cutoff whose payment never
// arrived. Returns how many were cancelled.
func (s *Service) CancelStale(ctx context.Context, cutoff time.Time) (int, error) {
	filter := models.Filter{
		Method:          workflow.MethodCard,
		Statuses:        []workflow.Status{workflow.StatusPending},
		PaymentStatuses: []workflow.PaymentStatus{workflow.PaymentUnpaid, workflow.PaymentPending, workflow.PaymentFailed},
		CreatedBefore:   cutoff,
		Limit:           models.MaxPageSize,
	}
	cancelled := 0
	for {
		batch, err := s.store.List(ctx, filter)
		if err != nil {
			return cancelled, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale orders")
		}
		progressed := 0
		for _, order := range batch {
			if _, err := s.Transition(ctx, System, order.ID, workflow.StatusCancelled, "payment not received in time"); err != nil {
				s.logger.WarnContext(ctx, "failed to cancel stale order", "order_id", order.ID.String(), "error", err)
				continue
			}
			progressed++
		}
		cancelled += progressed
		// Cancelled orders drop out of the filter; skip past the ones that failed.
		filter.Offset += len(batch) - progressed
		if len(batch) < filter.Limit || progressed == 0 {
			break
		}
	}
	if s.metrics != nil && cancelled > 0 {
		s.metrics.AddStaleCancelled(cancelled)
	}
	return cancelled, nil
}

func (s *Service) changePayment(
	ctx context.Context,
	actor Actor,
	orderID id.OrderID,
	to workflow.PaymentStatus,
	note string,
	before func(ctx context.Context, order *models.Order) error,
) (*models.Order, error) {
	var (
		updated *models.Order
		from    workflow.PaymentStatus
		noop    bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeView(actor, order); err != nil {
			return err
		}
		if actor.Role == workflow.RoleSystem && order.PaymentStatus == to {
			noop = true
			updated = order
			return nil
		}
		if err := workflow.CheckPayment(actor.Role, order.PaymentMethod, order.PaymentStatus, to); err != nil {
			return err
		}
		if before != nil {
			if err := before(ctx, order); err != nil {
				return err
			}
		}
		from = order.PaymentStatus
		order.ApplyPayment(to, actor.UserID, actor.Role, note, requestcontext.Now(ctx))
		if err := s.store.Update(ctx, order); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order")
		}
		if err := s.emit(ctx, actor, audit.EventOrderPayment, order, string(from), string(to), note); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}
	if !noop && s.metrics != nil {
		s.metrics.IncrementPayment(string(from), string(to), string(actor.Role))
	}
	return updated, nil
}

// SettleRefunds retries refunds still owed on cancelled orders, for example
// after the payment provider was unreachable at cancellation time. Returns
// how many were refunded.
func (s *Service) SettleRefunds(ctx context.Context) (int, error) {
	filter := models.Filter{
		Statuses:        []workflow.Status{workflow.StatusCancelled},
		PaymentStatuses: []workflow.PaymentStatus{workflow.PaymentPaid},
		Limit:           models.MaxPageSize,
	}
	settled := 0
	for {
		batch, err := s.store.List(ctx, filter)
		if err != nil {
			return settled, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list unrefunded orders")
		}
		progressed := 0
		for _, order := range batch {
			if _, err := s.settleRefund(ctx, System, order.ID, "refund retried"); err != nil {
				s.logger.WarnContext(ctx, "refund still owed", "order_id", order.ID.String(), "error", err)
				continue
			}
			progressed++
		}
		settled += progressed
		filter.Offset += len(batch) - progressed
		if len(batch) < filter.Limit || progressed == 0 {
			return settled, nil
		}
	}
}

// settleRefund refunds at the payment provider, then records the refund.
// The provider call runs outside any transaction so no order stays locked
// while it answers; the provider dedupes repeats on the refund key.
func (s *Service) settleRefund(ctx context.Context, actor Actor, orderID id.OrderID, note string) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(actor, order); err != nil {
		return nil, err
	}
	if err := workflow.CheckPayment(actor.Role, order.PaymentMethod, order.PaymentStatus, workflow.PaymentRefunded); err != nil {
		return nil, err
	}
	if s.refundsAtGateway(order) {
		if err := s.payments.Refund(ctx, order.PaymentRef, order.Total); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment provider refused the refund")
		}
	}
	return s.changePayment(ctx, actor, orderID, workflow.PaymentRefunded, note, nil)
}

// settleOrDefer refunds after a committed cancellation. A failure leaves the
// payment paid for SettleRefunds to retry; the cancellation itself stands.
func (s *Service) settleOrDefer(ctx context.Context, order *models.Order, note string) *models.Order {
	refunded, err := s.settleRefund(ctx, System, order.ID, note)
	if err != nil {
		s.logger.WarnContext(ctx, "refund deferred",
			"order_id", order.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return order
	}
	return refunded
}

func (s *Service) refundsAtGateway(order *models.Order) bool {
	return order.PaymentMethod == workflow.MethodCard && order.PaymentRef != "" && s.payments != nil
}

// recordRefund marks a payment refunded that needs no provider call, such as
// cash on delivery.
func recordRefund(order *models.Order, note string, now time.Time) error {
	if err := workflow.CheckPayment(System.Role, order.PaymentMethod, order.PaymentStatus, workflow.PaymentRefunded); err != nil {
		return err
	}
	order.ApplyPayment(workflow.PaymentRefunded, System.UserID, System.Role, note, now)
	return nil
}

func (s *Service) load(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load order")
	}
	return order, nil
}

func (s *Service) emit(ctx context.Context, actor Actor, event audit.AuditEvent, order *models.Order, from, to, reason string) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    actor.UserID,
		ActorRole: string(actor.Role),
		Subject:   order.ID.String(),
		Action:    string(event),
		From:      from,
		To:        to,
		Reason:    reason,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record order event")
	}
	return nil
}

func (s *Service) denied(ctx context.Context, span trace.Span, err error) {
	code := dErrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	if s.metrics != nil {
		s.metrics.IncrementDenied(string(code))
	}
	if code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "order transition failed", "error", err)
	}
}

// authorizeView hides other customers' orders and keeps staff to the
// statuses their role works with. A deliveryman may not touch an order
// assigned to someone else.
func authorizeView(actor Actor, order *models.Order) error {
	switch actor.Role {
	case workflow.RoleSystem, id.RoleAdmin, id.RoleAccount:
		return nil
	case id.RoleUser:
		if !order.IsOwnedBy(actor.UserID) {
			return dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil
	case id.RolePacker, id.RoleDeliveryman:
		if !workflow.CanView(actor.Role, order.Status) {
			return dErrors.Newf(dErrors.CodeForbidden, "%s cannot access orders in status %s", actor.Role, order.Status)
		}
		if actor.Role == id.RoleDeliveryman && order.AssignedTo != nil && *order.AssignedTo != actor.UserID {
			return dErrors.New(dErrors.CodeForbidden, "order is assigned to another deliveryman")
		}
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "role cannot access orders")
}

// scopeFilter narrows a requested filter to the actor's visibility. The
// second result reports that nothing can match.
func scopeFilter(actor Actor, f models.Filter) (models.Filter, bool, error) {
	for _, st := range f.Statuses {
		if !st.IsValid() {
			return f, false, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", st)
		}
	}
	for _, p := range f.PaymentStatuses {
		if !p.IsValid() {
			return f, false, dErrors.Newf(dErrors.CodeValidation, "unknown payment status %q", p)
		}
	}

	switch actor.Role {
	case id.RoleAdmin, id.RoleAccount:
		return f, false, nil
	case id.RoleUser:
		owner := actor.UserID
		f.UserID = &owner
		return f, false, nil
	case id.RolePacker, id.RoleDeliveryman:
		visible := workflow.VisibleStatuses(actor.Role)
		if len(f.Statuses) == 0 {
			f.Statuses = visible
		} else {
			var allowed []workflow.Status
			for _, st := range f.Statuses {
				if workflow.CanView(actor.Role, st) {
					allowed = append(allowed, st)
				}
			}
			if len(allowed) == 0 {
				return f, true, nil
			}
			f.Statuses = allowed
		}
		if actor.Role == id.RoleDeliveryman {
			courier := actor.UserID
			f.AssignedTo = &courier
			f.IncludeUnassigned = true
		}
		return f, false, nil
	}
	return f, false, dErrors.New(dErrors.CodeForbidden, "role cannot list orders")
}

func matchRef(order *models.Order, ref string) error {
	if ref != "" && order.PaymentRef != "" && order.PaymentRef != ref {
		return dErrors.New(dErrors.CodeConflict, "payment reference does not match order")
	}
	return nil
}
