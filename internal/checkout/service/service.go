// Package service turns a shopper's cart into an order.
package service

import (
	"context"
	"log/slog"

	cartmodels "storefront/internal/cart/models"
	"storefront/internal/checkout/models"
	identitymodels "storefront/internal/identity/models"
	ordermodels "storefront/internal/order/models"
	orderservice "storefront/internal/order/service"
	"storefront/internal/order/workflow"
	"storefront/internal/payment"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/requestcontext"
)

type Cart interface {
	View(ctx context.Context, userID id.UserID, display string) (*cartmodels.View, error)
	Clear(ctx context.Context, userID id.UserID) error
}

type Inventory interface {
	Reserve(ctx context.Context, quantities map[id.ProductID]int) error
	Release(ctx context.Context, quantities map[id.ProductID]int) error
}

type Orders interface {
	Create(ctx context.Context, actor orderservice.Actor, order *ordermodels.Order) error
	Get(ctx context.Context, actor orderservice.Actor, orderID id.OrderID) (*ordermodels.Order, error)
	Transition(ctx context.Context, actor orderservice.Actor, orderID id.OrderID, to workflow.Status, note string) (*ordermodels.Order, error)
	AttachPaymentIntent(ctx context.Context, actor orderservice.Actor, orderID id.OrderID, ref string) (*ordermodels.Order, error)
}

type Addresses interface {
	GetAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) (*identitymodels.Address, error)
	DefaultAddress(ctx context.Context, userID id.UserID) (*identitymodels.Address, error)
}

// PaymentGateway opens card payments.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, orderID id.OrderID, amount int64, currency string) (*payment.Intent, error)
}

type Converter interface {
	Base() string
	Convert(amount int64, from, to string) (int64, error)
}

type Service struct {
	cart      Cart
	inventory Inventory
	orders    Orders
	addresses Addresses
	gateway   PaymentGateway
	converter Converter
	shipping  models.ShippingPolicy
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithShippingPolicy(policy models.ShippingPolicy) Option {
	return func(s *Service) { s.shipping = policy }
}

func New(cart Cart, inventory Inventory, orders Orders, addresses Addresses, gateway PaymentGateway, converter Converter, opts ...Option) *Service {
	s := &Service{
		cart:      cart,
		inventory: inventory,
		orders:    orders,
		addresses: addresses,
		gateway:   gateway,
		converter: converter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote prices the cart in display currency without reserving anything.
func (s *Service) Quote(ctx context.Context, userID id.UserID, display string) (*models.Quote, error) {
	view, err := s.cart.View(ctx, userID, display)
	if err != nil {
		return nil, err
	}
	fee, err := s.shippingFee(view)
	if err != nil {
		return nil, err
	}
	return &models.Quote{
		Subtotal:    view.Subtotal,
		ShippingFee: fee,
		Total:       view.Subtotal + fee,
		Currency:    view.Currency,
		Count:       view.Count,
		Purchasable: !view.Empty() && view.Purchasable(),
	}, nil
}

// Checkout reserves stock for the cart, creates the order and, for card
// payments, opens a payment intent. Stock is released if anything after the
// reservation fails.
func (s *Service) Checkout(ctx context.Context, userID id.UserID, req *models.Request) (*models.Result, error) {
	actor := orderservice.Actor{UserID: userID, Role: requestcontext.Role(ctx)}
	if actor.Role == "" {
		actor.Role = id.RoleUser
	}

	address, err := s.resolveAddress(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	view, err := s.cart.View(ctx, userID, req.Currency)
	if err != nil {
		return nil, err
	}
	if view.Empty() {
		return nil, dErrors.New(dErrors.CodeValidation, "cart is empty")
	}
	if !view.Purchasable() {
		return nil, dErrors.New(dErrors.CodeConflict, "some items in the cart are out of stock")
	}
	fee, err := s.shippingFee(view)
	if err != nil {
		return nil, err
	}

	items := make([]ordermodels.LineItem, len(view.Items))
	for i, line := range view.Items {
		items[i] = ordermodels.LineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Slug:      line.Slug,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	order, err := ordermodels.NewOrder(
		id.NewOrderID(), userID, items, fee, view.Currency,
		req.Method(), address, req.Note, requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	quantities := order.Quantities()
	if err := s.inventory.Reserve(ctx, quantities); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, actor, order); err != nil {
		s.release(ctx, order.ID, quantities)
		return nil, err
	}
	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID.String(),
		"user_id", userID.String(),
		"payment_method", order.PaymentMethod,
		"total", order.Total,
		"currency", order.Currency,
		"request_id", requestcontext.RequestID(ctx),
	)

	result := &models.Result{Order: order}
	if order.PaymentMethod == workflow.MethodCard {
		updated, secret, err := s.openIntent(ctx, orderservice.System, order)
		if err != nil {
			// The cancellation releases the reserved stock.
			if _, cancelErr := s.orders.Transition(ctx, orderservice.System, order.ID, workflow.StatusCancelled, "payment could not be started"); cancelErr != nil {
				s.logger.ErrorContext(ctx, "failed to cancel order after payment error",
					"order_id", order.ID.String(),
					"error", cancelErr,
				)
			}
			return nil, err
		}
		result.Order = updated
		result.ClientSecret = secret
	}

	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after checkout",
			"user_id", userID.String(),
			"error", err,
		)
	}
	return result, nil
}

// RetryPayment opens a new intent for a card order whose payment failed.
func (s *Service) RetryPayment(ctx context.Context, userID id.UserID, orderID id.OrderID) (*models.Result, error) {
	actor := orderservice.Actor{UserID: userID, Role: requestcontext.Role(ctx)}
	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != workflow.MethodCard {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only card payments can be retried")
	}
	if order.PaymentStatus != workflow.PaymentFailed {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "payment is %s and cannot be retried", order.PaymentStatus)
	}
	updated, secret, err := s.openIntent(ctx, actor, order)
	if err != nil {
		return nil, err
	}
	return &models.Result{Order: updated, ClientSecret: secret}, nil
}

func (s *Service) openIntent(ctx context.Context, actor orderservice.Actor, order *ordermodels.Order) (*ordermodels.Order, string, error) {
	intent, err := s.gateway.CreateIntent(ctx, order.ID, order.Total, order.Currency)
	if err != nil {
		s.logger.WarnContext(ctx, "payment intent failed",
			"order_id", order.ID.String(),
			"error", err,
		)
		return nil, "", err
	}
	updated, err := s.orders.AttachPaymentIntent(ctx, actor, order.ID, intent.Ref)
	if err != nil {
		return nil, "", err
	}
	return updated, intent.ClientSecret, nil
}

func (s *Service) resolveAddress(ctx context.Context, userID id.UserID, req *models.Request) (ordermodels.ShippingAddress, error) {
	if req.Address != nil {
		var a identitymodels.Address
		req.Address.Apply(&a)
		return models.ShippingAddressFrom(&a), nil
	}
	var (
		a   *identitymodels.Address
		err error
	)
	if addressID, ok := req.SavedAddress(); ok {
		a, err = s.addresses.GetAddress(ctx, userID, addressID)
	} else {
		a, err = s.addresses.DefaultAddress(ctx, userID)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return ordermodels.ShippingAddress{}, dErrors.New(dErrors.CodeValidation, "a shipping address is required")
		}
	}
	if err != nil {
		return ordermodels.ShippingAddress{}, err
	}
	return models.ShippingAddressFrom(a), nil
}

// shippingFee converts the base-currency policy into the cart's currency.
func (s *Service) shippingFee(view *cartmodels.View) (int64, error) {
	base := s.converter.Base()
	fee, err := s.converter.Convert(s.shipping.FlatFee, base, view.Currency)
	if err != nil {
		return 0, err
	}
	threshold, err := s.converter.Convert(s.shipping.FreeThreshold, base, view.Currency)
	if err != nil {
		return 0, err
	}
	return models.Fee(view.Subtotal, fee, threshold), nil
}

func (s *Service) release(ctx context.Context, orderID id.OrderID, quantities map[id.ProductID]int) {
	if err := s.inventory.Release(ctx, quantities); err != nil {
		s.logger.ErrorContext(ctx, "failed to release stock after checkout error",
			"order_id", orderID.String(),
			"error", err,
		)
	}
}
