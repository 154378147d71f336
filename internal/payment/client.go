package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/circuit"
)

const (
	defaultTimeout      = 10 * time.Second
	maxResponseBodySize = 1 << 20
)

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// HTTPGateway calls the provider's JSON API with a bearer key. A circuit
// breaker stops hammering the provider while it is failing.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type ClientOption func(*HTTPGateway)

func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(g *HTTPGateway) { g.breaker = b }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(g *HTTPGateway) { g.logger = logger }
}

func NewHTTPGateway(cfg ClientConfig, opts ...ClientOption) (*HTTPGateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("payment: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("payment: API key is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	g := &HTTPGateway{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: client,
		breaker:    circuit.New("payment-gateway"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, orderID id.OrderID, amount int64, currency string) (*Intent, error) {
	body, err := g.post(ctx, "/v1/payment_intents", "", map[string]any{
		"amount":   amount,
		"currency": strings.ToLower(currency),
		"metadata": map[string]string{"order_id": orderID.String()},
	})
	if err != nil {
		return nil, err
	}
	res := gjson.GetManyBytes(body, "id", "client_secret")
	if res[0].String() == "" || res[1].String() == "" {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment provider returned an incomplete intent")
	}
	return &Intent{Ref: res[0].String(), ClientSecret: res[1].String()}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, ref string, amount int64) error {
	body, err := g.post(ctx, "/v1/refunds", "refund-"+ref, map[string]any{
		"payment_intent": ref,
		"amount":         amount,
	})
	if err != nil {
		return err
	}
	if status := gjson.GetBytes(body, "status").String(); status == "failed" || status == "canceled" {
		return dErrors.Newf(dErrors.CodeUnavailable, "refund %s", status)
	}
	return nil
}

// post sends a JSON request. A non-empty idempotencyKey lets the provider
// collapse retried calls.
func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, payload any) ([]byte, error) {
	if !g.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment provider is unavailable")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payment: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("payment: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.recordFailure(ctx)
		if ctx.Err() != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "payment provider timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment provider is unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		g.recordFailure(ctx)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read payment provider response")
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		g.recordFailure(ctx)
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "payment provider error: %s", providerMessage(body, resp.Status))
	case resp.StatusCode >= 400:
		g.breaker.RecordSuccess()
		return nil, dErrors.Newf(dErrors.CodePaymentRequired, "payment rejected: %s", providerMessage(body, resp.Status))
	}
	g.breaker.RecordSuccess()
	if !gjson.ValidBytes(body) {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment provider returned invalid JSON")
	}
	return body, nil
}

func (g *HTTPGateway) recordFailure(ctx context.Context) {
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "payment gateway circuit opened", "breaker", g.breaker.Name())
	}
}

func providerMessage(body []byte, fallback string) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	return fallback
}
