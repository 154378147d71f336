package models

import (
	"strings"

	identitymodels "storefront/internal/identity/models"
	ordermodels "storefront/internal/order/models"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

const MaxNoteLength = 500

// ShippingPolicy charges a flat fee unless the subtotal reaches the free
// threshold. Both amounts are in the base currency; a zero threshold means
// shipping is never free.
type ShippingPolicy struct {
	FlatFee       int64
	FreeThreshold int64
}

// Fee returns the shipping charge for subtotal. fee and threshold must be
// in the subtotal's currency.
func Fee(subtotal, fee, threshold int64) int64 {
	if threshold > 0 && subtotal >= threshold {
		return 0
	}
	return fee
}

// Request places an order from the caller's cart. Exactly one of AddressID
// and Address may be set; with neither the default address is used.
type Request struct {
	AddressID     string                         `json:"address_id,omitempty"`
	Address       *identitymodels.AddressRequest `json:"address,omitempty"`
	PaymentMethod string                         `json:"payment_method"`
	Currency      string                         `json:"currency,omitempty"`
	Note          string                         `json:"note,omitempty"`

	addressID id.AddressID
}

func (r *Request) Normalize() {
	r.AddressID = strings.TrimSpace(r.AddressID)
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Note = strings.TrimSpace(r.Note)
	if r.Address != nil {
		r.Address.Normalize()
	}
}

func (r *Request) Validate() error {
	if !workflow.PaymentMethod(r.PaymentMethod).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "payment_method must be card or cod")
	}
	if r.AddressID != "" && r.Address != nil {
		return dErrors.New(dErrors.CodeValidation, "send either address_id or address, not both")
	}
	if r.AddressID != "" {
		addressID, err := id.ParseAddressID(r.AddressID)
		if err != nil {
			return err
		}
		r.addressID = addressID
	}
	if r.Address != nil {
		if err := r.Address.Validate(); err != nil {
			return err
		}
	}
	if len(r.Note) > MaxNoteLength {
		return dErrors.Newf(dErrors.CodeValidation, "note must be at most %d characters", MaxNoteLength)
	}
	return nil
}

func (r *Request) Method() workflow.PaymentMethod {
	return workflow.PaymentMethod(r.PaymentMethod)
}

// SavedAddress returns the parsed address ID, if one was sent.
func (r *Request) SavedAddress() (id.AddressID, bool) {
	return r.addressID, !r.addressID.IsNil()
}

// Result is returned to the shopper. ClientSecret is set for card orders and
// is handed to the payment provider's client library.
type Result struct {
	Order        *ordermodels.Order `json:"order"`
	ClientSecret string             `json:"client_secret,omitempty"`
}

// Quote previews what checkout would charge.
type Quote struct {
	Subtotal    int64  `json:"subtotal"`
	ShippingFee int64  `json:"shipping_fee"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`
	Count       int    `json:"count"`
	Purchasable bool   `json:"purchasable"`
}

// ShippingAddressFrom snapshots a saved or inline address onto the order.
func ShippingAddressFrom(a *identitymodels.Address) ordermodels.ShippingAddress {
	return ordermodels.ShippingAddress{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
