package httptransport_test

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	carthandler "storefront/internal/cart/handler"
	cartmodels "storefront/internal/cart/models"
	cartservice "storefront/internal/cart/service"
	cartstore "storefront/internal/cart/store"
	cataloghandler "storefront/internal/catalog/handler"
	catalogmodels "storefront/internal/catalog/models"
	catalogservice "storefront/internal/catalog/service"
	catalogstore "storefront/internal/catalog/store"
	checkouthandler "storefront/internal/checkout/handler"
	checkoutmodels "storefront/internal/checkout/models"
	checkoutservice "storefront/internal/checkout/service"
	"storefront/internal/currency"
	identityhandler "storefront/internal/identity/handler"
	identitymodels "storefront/internal/identity/models"
	identityservice "storefront/internal/identity/service"
	identitystore "storefront/internal/identity/store"
	jwttoken "storefront/internal/jwt_token"
	orderhandler "storefront/internal/order/handler"
	orderservice "storefront/internal/order/service"
	orderstore "storefront/internal/order/store"
	"storefront/internal/order/workflow"
	"storefront/internal/payment"
	httptransport "storefront/internal/transport/http"
	"storefront/pkg/testutil"
)

const webhookSecret = "whsec_test"

// newStorefront wires every domain service on in-memory stores behind the
// real router, the way main does without DATABASE_URL or REDIS_URL.
func newStorefront(t *testing.T) (http.Handler, *identityservice.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	converter, err := currency.New("USD", map[string]float64{"EUR": 0.5})
	require.NoError(t, err)
	jwtService := jwttoken.NewJWTService("flow-test-key", "storefront", "storefront-api")

	identity := identityservice.New(identitystore.NewInMemory(), jwtService,
		identityservice.WithLogger(logger),
		identityservice.WithBcryptCost(bcrypt.MinCost),
	)
	catalog := catalogservice.New(catalogstore.NewInMemory(), "USD", catalogservice.WithLogger(logger))
	carts := cartservice.New(cartstore.NewInMemory(), catalog, converter, cartservice.WithLogger(logger))
	orders := orderservice.New(orderstore.NewInMemory(), catalog,
		orderservice.WithPaymentGateway(payment.NoopGateway{}),
		orderservice.WithUserDirectory(identity),
		orderservice.WithLogger(logger),
	)
	checkout := checkoutservice.New(carts, catalog, orders, identity, payment.NoopGateway{}, converter,
		checkoutservice.WithLogger(logger),
		checkoutservice.WithShippingPolicy(checkoutmodels.ShippingPolicy{FlatFee: 500, FreeThreshold: 5000}),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    logger,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Identity:  identityhandler.New(identity, logger),
		Catalog:   cataloghandler.New(catalog, converter, logger),
		Currency:  currency.NewHandler(converter),
		Cart:      carthandler.New(carts, logger),
		Checkout:  checkouthandler.New(checkout, logger),
		Orders:    orderhandler.New(orders, logger),
		Webhooks:  payment.NewWebhookHandler(orders, webhookSecret, nil, logger),
	})
	return router, identity
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) call(method, path string, body any, wantStatus int) []byte {
	c.t.Helper()
	req := testutil.NewJSONRequest(c.t, method, path, body)
	if c.token != "" {
		testutil.WithBearer(req, c.token)
	}
	rr := testutil.DoRequest(c.router, req)
	testutil.AssertStatus(c.t, rr, wantStatus)
	return rr.Body.Bytes()
}

func decode[T any](t *testing.T, c *client, method, path string, body any, wantStatus int) *T {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	if c.token != "" {
		testutil.WithBearer(req, c.token)
	}
	rr := testutil.DoRequest(c.router, req)
	testutil.AssertStatus(t, rr, wantStatus)
	return testutil.UnmarshalResponse[T](t, rr)
}

func signIn(t *testing.T, router http.Handler, email, password string) *client {
	t.Helper()
	anon := &client{t: t, router: router}
	res := decode[identitymodels.TokenResult](t, anon, http.MethodPost, "/auth/login",
		identitymodels.LoginRequest{Email: email, Password: password}, http.StatusOK)
	return &client{t: t, router: router, token: res.AccessToken}
}

func register(t *testing.T, router http.Handler, email string) (*client, *identitymodels.User) {
	t.Helper()
	anon := &client{t: t, router: router}
	res := decode[identitymodels.TokenResult](t, anon, http.MethodPost, "/auth/register",
		identitymodels.RegisterRequest{Email: email, Password: "correct horse"}, http.StatusCreated)
	return &client{t: t, router: router, token: res.AccessToken}, res.User
}

func TestStorefrontFlow(t *testing.T) {
	router, identity := newStorefront(t)
	_, err := identity.EnsureAdmin(context.Background(), "admin@example.com", "admin-password")
	require.NoError(t, err)
	admin := signIn(t, router, "admin@example.com", "admin-password")

	var product *catalogmodels.Product
	testutil.Given(t, "an admin lists a lamp with three in stock", func(t *testing.T) {
		product = decode[catalogmodels.Product](t, admin, http.MethodPost, "/admin/products",
			catalogmodels.CreateProductRequest{Name: "Desk Lamp", Price: 1500, Stock: 3}, http.StatusCreated)
		assert.Equal(t, "desk-lamp", product.Slug)
	})

	customer, shopper := register(t, router, "jane.doe@example.com")
	assert.Equal(t, "Jane Doe", shopper.Name)

	testutil.When(t, "a customer without a token adds to cart", func(t *testing.T) {
		anon := &client{t: t, router: router}
		anon.call(http.MethodPost, "/cart/items", cartmodels.AddItemRequest{ProductID: product.ID.String(), Quantity: 1}, http.StatusUnauthorized)
	})

	testutil.When(t, "a customer cannot reach product management", func(t *testing.T) {
		customer.call(http.MethodPost, "/admin/products", catalogmodels.CreateProductRequest{Name: "Nope"}, http.StatusForbidden)
	})

	var codOrder *checkoutmodels.Result
	testutil.When(t, "the customer checks out two lamps cash on delivery", func(t *testing.T) {
		customer.call(http.MethodPost, "/me/addresses", identitymodels.AddressRequest{
			FullName: "Jane Doe", Phone: "+1 555 0100", Line1: "1 Main St",
			City: "Springfield", PostalCode: "12345", Country: "US",
		}, http.StatusCreated)
		customer.call(http.MethodPost, "/cart/items", cartmodels.AddItemRequest{ProductID: product.ID.String(), Quantity: 2}, http.StatusOK)

		quote := decode[checkoutmodels.Quote](t, customer, http.MethodGet, "/checkout/quote", nil, http.StatusOK)
		assert.Equal(t, int64(3000), quote.Subtotal)
		assert.Equal(t, int64(500), quote.ShippingFee)
		assert.Equal(t, int64(3500), quote.Total)

		codOrder = decode[checkoutmodels.Result](t, customer, http.MethodPost, "/checkout",
			checkoutmodels.Request{PaymentMethod: "cod"}, http.StatusCreated)
	})

	testutil.Then(t, "stock is reserved and the cart is emptied", func(t *testing.T) {
		assert.Equal(t, workflow.StatusPending, codOrder.Order.Status)
		assert.Equal(t, workflow.PaymentPending, codOrder.Order.PaymentStatus)
		assert.Empty(t, codOrder.ClientSecret)

		lamp := decode[cataloghandler.ProductResponse](t, customer, http.MethodGet, "/products/desk-lamp", nil, http.StatusOK)
		assert.Equal(t, 1, lamp.Stock)

		cart := decode[cartmodels.View](t, customer, http.MethodGet, "/cart", nil, http.StatusOK)
		assert.Zero(t, cart.Count)
	})

	testutil.Then(t, "asking for more than remains is refused", func(t *testing.T) {
		customer.call(http.MethodPost, "/cart/items", cartmodels.AddItemRequest{ProductID: product.ID.String(), Quantity: 2}, http.StatusConflict)
	})

	orderPath := "/orders/" + codOrder.Order.ID.String()

	_, packerUser := register(t, router, "packer@example.com")
	admin.call(http.MethodPut, "/admin/users/"+packerUser.ID.String()+"/role", identitymodels.RoleRequest{Role: "packer"}, http.StatusOK)
	packer := signIn(t, router, "packer@example.com", "correct horse")

	testutil.When(t, "staff move the order through fulfilment", func(t *testing.T) {
		customer.call(http.MethodPost, orderPath+"/status", map[string]string{"status": "confirmed"}, http.StatusForbidden)
		packer.call(http.MethodGet, orderPath, nil, http.StatusForbidden)

		admin.call(http.MethodPost, orderPath+"/status", map[string]string{"status": "confirmed"}, http.StatusOK)
		packer.call(http.MethodPost, orderPath+"/status", map[string]string{"status": "processing"}, http.StatusOK)
	})

	testutil.Then(t, "the customer can no longer cancel", func(t *testing.T) {
		customer.call(http.MethodPost, orderPath+"/status", map[string]string{"status": "cancelled"}, http.StatusForbidden)

		tracking := customer.call(http.MethodGet, orderPath+"/tracking", nil, http.StatusOK)
		assert.Contains(t, string(tracking), `"processing"`)
	})
}

func TestCardPaymentWebhook(t *testing.T) {
	router, identity := newStorefront(t)
	_, err := identity.EnsureAdmin(context.Background(), "admin@example.com", "admin-password")
	require.NoError(t, err)
	admin := signIn(t, router, "admin@example.com", "admin-password")
	product := decode[catalogmodels.Product](t, admin, http.MethodPost, "/admin/products",
		catalogmodels.CreateProductRequest{Name: "Kettle", Price: 6000, Stock: 1}, http.StatusCreated)

	customer, _ := register(t, router, "card@example.com")
	customer.call(http.MethodPost, "/cart/items", cartmodels.AddItemRequest{ProductID: product.ID.String(), Quantity: 1}, http.StatusOK)

	res := decode[checkoutmodels.Result](t, customer, http.MethodPost, "/checkout", checkoutmodels.Request{
		PaymentMethod: "card",
		Address: &identitymodels.AddressRequest{
			FullName: "Card Holder", Phone: "+1 555 0101", Line1: "2 Main St",
			City: "Springfield", PostalCode: "12345", Country: "US",
		},
	}, http.StatusCreated)
	require.NotEmpty(t, res.ClientSecret)
	assert.Equal(t, workflow.PaymentPending, res.Order.PaymentStatus)
	assert.Zero(t, res.Order.ShippingFee, "orders above the threshold ship free")

	orderPath := "/orders/" + res.Order.ID.String()
	customer.call(http.MethodPost, orderPath+"/status", map[string]string{"status": "confirmed"}, http.StatusForbidden)

	body := fmt.Sprintf(`{"id":"evt_1","type":%q,"data":{"order_id":%q,"payment_ref":%q}}`,
		payment.EventSucceeded, res.Order.ID.String(), res.Order.PaymentRef)

	unsigned := testutil.NewJSONRequest(t, http.MethodPost, "/payments/webhook", nil)
	testutil.AssertStatus(t, testutil.DoRequest(router, unsigned), http.StatusUnauthorized)

	for range 2 {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/payments/webhook", nil)
		req.Body = io.NopCloser(strings.NewReader(body))
		req.Header.Set(payment.SignatureHeader, "sha256="+hex.EncodeToString(payment.Sign([]byte(webhookSecret), []byte(body))))
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusOK)
	}

	paid := decode[orderhandler.OrderResponse](t, customer, http.MethodGet, orderPath, nil, http.StatusOK)
	assert.Equal(t, workflow.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, workflow.StatusConfirmed, paid.Status)
}
