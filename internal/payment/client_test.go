package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/circuit"
)

func TestHTTPGatewayCreateIntent(t *testing.T) {
	orderID := id.NewOrderID()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Idempotency-Key"), "each attempt gets a fresh intent")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(3500), body["amount"])
		assert.Equal(t, "usd", body["currency"])

		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_payment_method"}`))
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(ClientConfig{BaseURL: srv.URL + "/", APIKey: "sk_test"})
	require.NoError(t, err)

	intent, err := g.CreateIntent(context.Background(), orderID, 3500, "USD")
	require.NoError(t, err)
	assert.Equal(t, &Intent{Ref: "pi_123", ClientSecret: "pi_123_secret"}, intent)
}

func TestHTTPGatewayErrors(t *testing.T) {
	t.Run("client errors surface the provider message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"amount too small"}}`))
		}))
		defer srv.Close()

		g, err := NewHTTPGateway(ClientConfig{BaseURL: srv.URL, APIKey: "sk_test"})
		require.NoError(t, err)
		_, err = g.CreateIntent(context.Background(), id.NewOrderID(), 1, "usd")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentRequired))
		assert.Contains(t, dErrors.Message(err), "amount too small")
	})

	t.Run("incomplete intent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":"pi_1"}`))
		}))
		defer srv.Close()

		g, err := NewHTTPGateway(ClientConfig{BaseURL: srv.URL, APIKey: "sk_test"})
		require.NoError(t, err)
		_, err = g.CreateIntent(context.Background(), id.NewOrderID(), 100, "usd")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("server errors open the breaker", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		g, err := NewHTTPGateway(ClientConfig{BaseURL: srv.URL, APIKey: "sk_test"},
			WithBreaker(circuit.New("payment-gateway", circuit.WithFailureThreshold(2))))
		require.NoError(t, err)

		for range 3 {
			err = g.Refund(context.Background(), "pi_1", 100)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		}
		assert.Equal(t, int32(2), calls.Load(), "third call short-circuits")
		assert.False(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.Contains(t, err.Error(), "payment provider is unavailable")
	})
}

func TestHTTPGatewayRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "refund-pi_9", r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded"}`))
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(ClientConfig{BaseURL: srv.URL, APIKey: "sk_test"})
	require.NoError(t, err)
	require.NoError(t, g.Refund(context.Background(), "pi_9", 500))
}

func TestNewHTTPGatewayValidatesConfig(t *testing.T) {
	_, err := NewHTTPGateway(ClientConfig{BaseURL: "ftp://pay", APIKey: "k"})
	assert.Error(t, err)
	_, err = NewHTTPGateway(ClientConfig{BaseURL: "https://pay.example"})
	assert.Error(t, err)
}

func TestNoopGateway(t *testing.T) {
	orderID := id.NewOrderID()
	intent, err := NoopGateway{}.CreateIntent(context.Background(), orderID, 100, "usd")
	require.NoError(t, err)
	assert.Equal(t, "pi_local_"+orderID.String(), intent.Ref)
	assert.NoError(t, NoopGateway{}.Refund(context.Background(), intent.Ref, 100))
}
