package handler

//go:generate mockgen -source=handler.go -destination=mocks/checkout-mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"storefront/internal/checkout/handler/mocks"
	"storefront/internal/checkout/models"
	ordermodels "storefront/internal/order/models"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/testutil"
)

type CheckoutHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	user    id.UserID
}

func TestCheckoutHandlerSuite(t *testing.T) {
	suite.Run(t, new(CheckoutHandlerSuite))
}

func (s *CheckoutHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.user = id.NewUserID()

	r := chi.NewRouter()
	r.Use(testutil.ActorMiddleware(func() (id.UserID, id.Role) { return s.user, id.RoleUser }))
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *CheckoutHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (s *CheckoutHandlerSuite) TestCheckout() {
	orderID := id.NewOrderID()

	s.Run("card order returns client secret", func() {
		s.service.EXPECT().Checkout(gomock.Any(), s.user, gomock.Any()).
			DoAndReturn(func(_ any, _ id.UserID, req *models.Request) (*models.Result, error) {
				s.Equal(workflow.MethodCard, req.Method())
				s.Equal("EUR", req.Currency)
				return &models.Result{
					Order:        &ordermodels.Order{ID: orderID, Status: workflow.StatusPending, PaymentStatus: workflow.PaymentPending},
					ClientSecret: "pi_1_secret",
				}, nil
			})
		rec := s.do(http.MethodPost, "/checkout", map[string]any{"payment_method": "card", "currency": "eur"})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var res models.Result
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
		s.Equal("pi_1_secret", res.ClientSecret)
		s.Equal(orderID, res.Order.ID)
	})

	s.Run("unknown payment method", func() {
		rec := s.do(http.MethodPost, "/checkout", map[string]any{"payment_method": "barter"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("empty cart", func() {
		s.service.EXPECT().Checkout(gomock.Any(), s.user, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "cart is empty"))
		rec := s.do(http.MethodPost, "/checkout", map[string]any{"payment_method": "cod"})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "cart is empty")
	})

	s.Run("provider down", func() {
		s.service.EXPECT().Checkout(gomock.Any(), s.user, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "payment provider unavailable"))
		rec := s.do(http.MethodPost, "/checkout", map[string]any{"payment_method": "card"})
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}

func (s *CheckoutHandlerSuite) TestQuote() {
	s.service.EXPECT().Quote(gomock.Any(), s.user, "GBP").
		Return(&models.Quote{Subtotal: 1000, ShippingFee: 400, Total: 1400, Currency: "GBP", Count: 1, Purchasable: true}, nil)
	rec := s.do(http.MethodGet, "/checkout/quote?currency=GBP", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"total":1400`)
}

func (s *CheckoutHandlerSuite) TestRetryPayment() {
	orderID := id.NewOrderID()
	s.service.EXPECT().RetryPayment(gomock.Any(), s.user, orderID).
		Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "payment is paid and cannot be retried"))
	rec := s.do(http.MethodPost, "/orders/"+orderID.String()+"/retry-payment", nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/orders/not-an-id/retry-payment", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}
