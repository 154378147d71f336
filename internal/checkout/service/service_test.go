package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	cartservice "storefront/internal/cart/service"
	cartstore "storefront/internal/cart/store"
	catalogmodels "storefront/internal/catalog/models"
	catalogservice "storefront/internal/catalog/service"
	catalogstore "storefront/internal/catalog/store"
	"storefront/internal/checkout/models"
	"storefront/internal/checkout/service/mocks"
	"storefront/internal/currency"
	identitymodels "storefront/internal/identity/models"
	identityservice "storefront/internal/identity/service"
	identitystore "storefront/internal/identity/store"
	ordermodels "storefront/internal/order/models"
	orderservice "storefront/internal/order/service"
	orderstore "storefront/internal/order/store"
	"storefront/internal/order/workflow"
	"storefront/internal/payment"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/requestcontext"
)

// CheckoutServiceSuite runs checkout against the real in-memory catalog,
// cart, order and identity services; only the payment provider is mocked.
type CheckoutServiceSuite struct {
	suite.Suite
	ctx      context.Context
	adminCtx context.Context
	ctrl     *gomock.Controller
	gateway  *mocks.MockPaymentGateway

	catalog  *catalogservice.Service
	cart     *cartservice.Service
	orders   *orderservice.Service
	identity *identityservice.Service
	service  *Service

	user    id.UserID
	product *catalogmodels.Product
}

func TestCheckoutServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s.user = id.NewUserID()
	s.ctx = requestcontext.WithTime(requestcontext.WithActor(context.Background(), s.user, id.RoleUser), now)
	s.adminCtx = requestcontext.WithTime(requestcontext.WithActor(context.Background(), id.NewUserID(), id.RoleAdmin), now)
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockPaymentGateway(s.ctrl)

	converter, err := currency.New("USD", map[string]float64{"EUR": 0.5})
	s.Require().NoError(err)

	s.catalog = catalogservice.New(catalogstore.NewInMemory(), "USD")
	s.cart = cartservice.New(cartstore.NewInMemory(), s.catalog, converter)
	s.orders = orderservice.New(orderstore.NewInMemory(), s.catalog)
	s.identity = identityservice.New(identitystore.NewInMemory(), nil, identityservice.WithBcryptCost(bcrypt.MinCost))
	s.service = New(s.cart, s.catalog, s.orders, s.identity, s.gateway, converter,
		WithShippingPolicy(models.ShippingPolicy{FlatFee: 500, FreeThreshold: 5000}),
	)

	s.product, err = s.catalog.Create(s.adminCtx, &catalogmodels.CreateProductRequest{Name: "Mug", Category: "kitchen", Price: 1500, Stock: 3})
	s.Require().NoError(err)
}

func (s *CheckoutServiceSuite) addToCart(qty int) {
	_, err := s.cart.Add(s.ctx, s.user, s.product.ID, qty)
	s.Require().NoError(err)
}

func (s *CheckoutServiceSuite) saveAddress() *identitymodels.Address {
	a, err := s.identity.CreateAddress(s.ctx, s.user, &identitymodels.AddressRequest{
		FullName: "Ada Lovelace", Phone: "+1 555 0100", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
	})
	s.Require().NoError(err)
	return a
}

func (s *CheckoutServiceSuite) stock() int {
	p, err := s.catalog.Get(s.ctx, s.product.ID)
	s.Require().NoError(err)
	return p.Stock
}

func (s *CheckoutServiceSuite) request(method string) *models.Request {
	req := &models.Request{PaymentMethod: method}
	req.Normalize()
	s.Require().NoError(req.Validate())
	return req
}

func (s *CheckoutServiceSuite) myOrders() []*ordermodels.Order {
	orders, err := s.orders.List(s.ctx, orderservice.Actor{UserID: s.user, Role: id.RoleUser}, ordermodels.Filter{})
	s.Require().NoError(err)
	return orders
}

func (s *CheckoutServiceSuite) TestCashOnDelivery() {
	s.saveAddress()
	s.addToCart(2)

	res, err := s.service.Checkout(s.ctx, s.user, s.request("cod"))
	s.Require().NoError(err)
	s.Empty(res.ClientSecret)

	order := res.Order
	s.Equal(workflow.StatusPending, order.Status)
	s.Equal(workflow.PaymentPending, order.PaymentStatus)
	s.Equal(int64(3000), order.Subtotal)
	s.Equal(int64(500), order.ShippingFee)
	s.Equal(int64(3500), order.Total)
	s.Equal("USD", order.Currency)
	s.Equal("Ada Lovelace", order.ShippingAddress.FullName)
	s.Equal(1, s.stock())

	view, err := s.cart.View(s.ctx, s.user, "")
	s.Require().NoError(err)
	s.True(view.Empty(), "cart is cleared")
}

func (s *CheckoutServiceSuite) TestCardOpensIntent() {
	s.saveAddress()
	s.addToCart(1)
	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), int64(2000), "USD").
		Return(&payment.Intent{Ref: "pi_1", ClientSecret: "pi_1_secret"}, nil)

	res, err := s.service.Checkout(s.ctx, s.user, s.request("card"))
	s.Require().NoError(err)
	s.Equal("pi_1_secret", res.ClientSecret)
	s.Equal(workflow.PaymentPending, res.Order.PaymentStatus)
	s.Equal("pi_1", res.Order.PaymentRef)
	s.Equal(2, s.stock())
}

func (s *CheckoutServiceSuite) TestCardIntentFailureCancelsOrder() {
	s.saveAddress()
	s.addToCart(2)
	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "payment provider unavailable"))

	_, err := s.service.Checkout(s.ctx, s.user, s.request("card"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(3, s.stock(), "stock released by the cancellation")

	orders := s.myOrders()
	s.Require().Len(orders, 1)
	s.Equal(workflow.StatusCancelled, orders[0].Status)

	view, err := s.cart.View(s.ctx, s.user, "")
	s.Require().NoError(err)
	s.Equal(2, view.Count, "cart kept for another attempt")
}

func (s *CheckoutServiceSuite) TestFreeShippingInDisplayCurrency() {
	s.saveAddress()
	s.addToCart(3)

	quote, err := s.service.Quote(s.ctx, s.user, "eur")
	s.Require().NoError(err)
	s.Equal("EUR", quote.Currency)
	s.Equal(int64(2250), quote.Subtotal)
	s.Equal(int64(250), quote.ShippingFee, "threshold converts to 2500 EUR")
	s.True(quote.Purchasable)

	req := &models.Request{PaymentMethod: "cod", Currency: "eur"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	res, err := s.service.Checkout(s.ctx, s.user, req)
	s.Require().NoError(err)
	s.Equal("EUR", res.Order.Currency)
	s.Equal(int64(2500), res.Order.Total)
}

func (s *CheckoutServiceSuite) TestFreeShippingAtThreshold() {
	price := int64(2500)
	_, err := s.catalog.Update(s.adminCtx, s.product.ID, &catalogmodels.UpdateProductRequest{Price: &price})
	s.Require().NoError(err)
	s.addToCart(2)

	quote, err := s.service.Quote(s.ctx, s.user, "")
	s.Require().NoError(err)
	s.Equal(int64(5000), quote.Subtotal)
	s.Equal(int64(0), quote.ShippingFee)
	s.Equal(int64(5000), quote.Total)
}

func (s *CheckoutServiceSuite) TestEmptyCart() {
	s.saveAddress()
	_, err := s.service.Checkout(s.ctx, s.user, s.request("cod"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.myOrders())
}

func (s *CheckoutServiceSuite) TestOutOfStock() {
	s.saveAddress()
	s.addToCart(2)
	_, err := s.catalog.AdjustStock(s.adminCtx, s.product.ID, -2)
	s.Require().NoError(err)

	_, err = s.service.Checkout(s.ctx, s.user, s.request("cod"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(1, s.stock(), "nothing reserved")
	s.Empty(s.myOrders())
}

func (s *CheckoutServiceSuite) TestAddressResolution() {
	s.addToCart(1)

	s.Run("no address at all", func() {
		_, err := s.service.Checkout(s.ctx, s.user, s.request("cod"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("someone else's saved address", func() {
		other, err := s.identity.CreateAddress(s.ctx, id.NewUserID(), &identitymodels.AddressRequest{
			FullName: "Eve", Phone: "+1 555 0199", Line1: "2 Side St", City: "Shelbyville", PostalCode: "54321", Country: "US",
		})
		s.Require().NoError(err)
		req := &models.Request{PaymentMethod: "cod", AddressID: other.ID.String()}
		req.Normalize()
		s.Require().NoError(req.Validate())
		_, err = s.service.Checkout(s.ctx, s.user, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("inline address", func() {
		req := &models.Request{PaymentMethod: "cod", Address: &identitymodels.AddressRequest{
			FullName: "Ada", Phone: "+1 555 0100", Line1: "9 Elm St", City: "Springfield", PostalCode: "12345", Country: "us",
		}}
		req.Normalize()
		s.Require().NoError(req.Validate())
		res, err := s.service.Checkout(s.ctx, s.user, req)
		s.Require().NoError(err)
		s.Equal("9 Elm St", res.Order.ShippingAddress.Line1)
		s.Equal("US", res.Order.ShippingAddress.Country)
	})
}

func (s *CheckoutServiceSuite) TestRetryPayment() {
	s.saveAddress()
	s.addToCart(1)
	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), int64(2000), "USD").
		Return(&payment.Intent{Ref: "pi_1", ClientSecret: "pi_1_secret"}, nil)
	res, err := s.service.Checkout(s.ctx, s.user, s.request("card"))
	s.Require().NoError(err)
	orderID := res.Order.ID

	_, err = s.service.RetryPayment(s.ctx, s.user, orderID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "pending payment cannot be retried")

	_, err = s.orders.FailPayment(s.ctx, orderID, "pi_1", "card declined")
	s.Require().NoError(err)

	s.gateway.EXPECT().CreateIntent(gomock.Any(), orderID, int64(2000), "USD").
		Return(&payment.Intent{Ref: "pi_2", ClientSecret: "pi_2_secret"}, nil)
	retried, err := s.service.RetryPayment(s.ctx, s.user, orderID)
	s.Require().NoError(err)
	s.Equal("pi_2_secret", retried.ClientSecret)
	s.Equal("pi_2", retried.Order.PaymentRef)
	s.Equal(workflow.PaymentPending, retried.Order.PaymentStatus)

	_, err = s.service.RetryPayment(s.ctx, id.NewUserID(), orderID)
	s.Error(err)
}
