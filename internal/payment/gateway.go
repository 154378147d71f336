// Package payment talks to the card payment provider and receives its
// webhooks. The provider is the source of truth for money movement; this
// package only relays its outcomes into the order workflow.
package payment

import (
	"context"
	"fmt"

	id "storefront/pkg/domain"
)

// Intent is a provider-side payment the shopper completes in the browser.
type Intent struct {
	Ref          string `json:"payment_ref"`
	ClientSecret string `json:"client_secret"`
}

// Gateway creates and refunds card payments. Amounts are minor units.
type Gateway interface {
	CreateIntent(ctx context.Context, orderID id.OrderID, amount int64, currency string) (*Intent, error)
	Refund(ctx context.Context, ref string, amount int64) error
}

// NoopGateway issues local intent references and accepts refunds without
// contacting a provider. Used when no provider URL is configured, e.g. in
// development. It never confirms a payment; that still takes a signed
// webhook or a staff payment update.
type NoopGateway struct{}

func (NoopGateway) CreateIntent(_ context.Context, orderID id.OrderID, _ int64, _ string) (*Intent, error) {
	ref := "pi_local_" + orderID.String()
	return &Intent{Ref: ref, ClientSecret: fmt.Sprintf("%s_secret", ref)}, nil
}

func (NoopGateway) Refund(context.Context, string, int64) error {
	return nil
}
