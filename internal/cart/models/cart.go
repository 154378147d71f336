package models

import (
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 99

// Item is a stored cart line. Prices are never stored; the view reprices
// from the catalog on every read.
type Item struct {
	ProductID id.ProductID `json:"product_id"`
	Quantity  int          `json:"quantity"`
}

// Line is a priced cart line.
type Line struct {
	ProductID id.ProductID `json:"product_id"`
	Slug      string       `json:"slug"`
	Name      string       `json:"name"`
	Image     string       `json:"image,omitempty"`
	UnitPrice int64        `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	LineTotal int64        `json:"line_total"`
	InStock   bool         `json:"in_stock"`
}

// View is the cart as the shopper sees it. Amounts are in Currency.
type View struct {
	Items    []Line `json:"items"`
	Count    int    `json:"count"`
	Subtotal int64  `json:"subtotal"`
	Currency string `json:"currency"`
}

// Empty reports whether there is nothing to check out.
func (v *View) Empty() bool {
	return len(v.Items) == 0
}

// Purchasable reports whether every line can be fulfilled from current stock.
func (v *View) Purchasable() bool {
	for _, line := range v.Items {
		if !line.InStock {
			return false
		}
	}
	return true
}

// Quantities maps products to units for stock reservation.
func (v *View) Quantities() map[id.ProductID]int {
	out := make(map[id.ProductID]int, len(v.Items))
	for _, line := range v.Items {
		out[line.ProductID] += line.Quantity
	}
	return out
}

func ValidateQuantity(qty int, allowZero bool) error {
	if qty < 0 || (qty == 0 && !allowZero) {
		return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	if qty > MaxQuantity {
		return dErrors.Newf(dErrors.CodeValidation, "quantity cannot exceed %d", MaxQuantity)
	}
	return nil
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`

	productID id.ProductID
}

func (r *AddItemRequest) Normalize() {
	if r.Quantity == 0 {
		r.Quantity = 1
	}
}

func (r *AddItemRequest) Validate() error {
	productID, err := id.ParseProductID(r.ProductID)
	if err != nil {
		return err
	}
	r.productID = productID
	return ValidateQuantity(r.Quantity, false)
}

// Product returns the parsed product ID after Validate.
func (r *AddItemRequest) Product() id.ProductID {
	return r.productID
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (r *SetQuantityRequest) Normalize() {}

func (r *SetQuantityRequest) Validate() error {
	return ValidateQuantity(r.Quantity, true)
}
