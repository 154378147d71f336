package handler

//go:generate mockgen -source=handler.go -destination=mocks/order-mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"storefront/internal/order/handler/mocks"
	"storefront/internal/order/models"
	"storefront/internal/order/service"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/testutil"
)

type OrderHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	actor   service.Actor
}

func TestOrderHandlerSuite(t *testing.T) {
	suite.Run(t, new(OrderHandlerSuite))
}

func (s *OrderHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.actor = service.Actor{UserID: id.NewUserID(), Role: id.RolePacker}

	r := chi.NewRouter()
	r.Use(testutil.ActorMiddleware(func() (id.UserID, id.Role) { return s.actor.UserID, s.actor.Role }))
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *OrderHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *OrderHandlerSuite) order(status workflow.Status) *models.Order {
	return &models.Order{
		ID:            id.NewOrderID(),
		Number:        "250504-abcdef12",
		UserID:        id.NewUserID(),
		Status:        status,
		PaymentStatus: workflow.PaymentPending,
		PaymentMethod: workflow.MethodCOD,
		CreatedAt:     time.Now(),
	}
}

func (s *OrderHandlerSuite) TestTransition() {
	s.Run("returns the updated order with next moves", func() {
		order := s.order(workflow.StatusProcessing)
		s.service.EXPECT().
			Transition(gomock.Any(), s.actor, order.ID, workflow.StatusProcessing, "starting").
			Return(order, nil)

		rec := s.do(http.MethodPost, "/orders/"+order.ID.String()+"/status", map[string]string{"status": " Processing ", "note": "starting"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			ID           string   `json:"id"`
			Status       string   `json:"status"`
			NextStatuses []string `json:"next_statuses"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(order.ID.String(), resp.ID)
		s.Equal("processing", resp.Status)
		s.Equal([]string{"packed"}, resp.NextStatuses)
	})

	s.Run("unknown status is rejected before the service", func() {
		rec := s.do(http.MethodPost, "/orders/"+id.NewOrderID().String()+"/status", map[string]string{"status": "lost"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad order id", func() {
		rec := s.do(http.MethodPost, "/orders/not-a-uuid/status", map[string]string{"status": "packed"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("workflow errors map to status codes", func() {
		cases := []struct {
			err    error
			status int
		}{
			{dErrors.New(dErrors.CodeForbidden, "packer cannot move order"), http.StatusForbidden},
			{dErrors.New(dErrors.CodeInvariantViolation, "cannot move order"), http.StatusConflict},
			{dErrors.New(dErrors.CodePaymentRequired, "unpaid"), http.StatusPaymentRequired},
			{dErrors.New(dErrors.CodeNotFound, "order not found"), http.StatusNotFound},
			{dErrors.New(dErrors.CodeInternal, "db down"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			s.service.EXPECT().Transition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.err)
			rec := s.do(http.MethodPost, "/orders/"+id.NewOrderID().String()+"/status", map[string]string{"status": "packed"})
			s.Equal(tc.status, rec.Code)
		}
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Transition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "pq: relation missing"))
		rec := s.do(http.MethodPost, "/orders/"+id.NewOrderID().String()+"/status", map[string]string{"status": "packed"})
		s.NotContains(rec.Body.String(), "relation missing")
	})
}

func (s *OrderHandlerSuite) TestList() {
	s.Run("parses filters", func() {
		s.service.EXPECT().List(gomock.Any(), s.actor, gomock.Any()).
			DoAndReturn(func(_ any, _ service.Actor, f models.Filter) ([]*models.Order, error) {
				s.Equal([]workflow.Status{workflow.StatusConfirmed, workflow.StatusPacked}, f.Statuses)
				s.Equal(workflow.MethodCOD, f.Method)
				s.Equal(5, f.Limit)
				return []*models.Order{s.order(workflow.StatusPacked)}, nil
			})

		rec := s.do(http.MethodGet, "/orders?status=confirmed,Packed&method=cod&limit=5", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp OrderListResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Len(resp.Orders, 1)
		s.Equal(5, resp.Limit)
	})

	s.Run("rejects bad paging", func() {
		rec := s.do(http.MethodGet, "/orders?limit=-1", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects unknown method", func() {
		rec := s.do(http.MethodGet, "/orders?method=crypto", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *OrderHandlerSuite) TestAssign() {
	order := s.order(workflow.StatusPacked)
	courier := id.NewUserID()
	s.service.EXPECT().Assign(gomock.Any(), s.actor, order.ID, courier).Return(order, nil)

	rec := s.do(http.MethodPost, "/orders/"+order.ID.String()+"/assign", map[string]string{"deliveryman_id": courier.String()})
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/orders/"+order.ID.String()+"/assign", map[string]string{"deliveryman_id": "nope"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *OrderHandlerSuite) TestPaymentStatus() {
	order := s.order(workflow.StatusDelivered)
	s.service.EXPECT().SetPaymentStatus(gomock.Any(), s.actor, order.ID, workflow.PaymentPaid, "cash").Return(order, nil)

	rec := s.do(http.MethodPost, "/orders/"+order.ID.String()+"/payment-status", map[string]string{"payment_status": "paid", "note": "cash"})
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/orders/"+order.ID.String()+"/payment-status", map[string]string{"payment_status": "maybe"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *OrderHandlerSuite) TestTrackingAndDashboard() {
	order := s.order(workflow.StatusConfirmed)
	s.service.EXPECT().Track(gomock.Any(), s.actor, order.ID).Return(models.BuildTracking(order), nil)
	rec := s.do(http.MethodGet, "/orders/"+order.ID.String()+"/tracking", nil)
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().Dashboard(gomock.Any(), s.actor).Return(&models.Dashboard{Role: id.RolePacker, Stats: models.NewStats()}, nil)
	rec = s.do(http.MethodGet, "/dashboard", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"role":"packer"`)

	s.service.EXPECT().Get(gomock.Any(), s.actor, order.ID).Return(nil, dErrors.New(dErrors.CodeNotFound, "order not found"))
	rec = s.do(http.MethodGet, "/orders/"+order.ID.String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
