// Package domain holds typed identifiers shared across modules.
//
// Each ID is a distinct named UUID type so a ProductID can never be passed
// where an OrderID is expected. Parse* helpers are the trust boundary for IDs
// arriving over HTTP.
package domain

import (
	"github.com/google/uuid"

	dErrors "storefront/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	ProductID uuid.UUID
	OrderID   uuid.UUID
	AddressID uuid.UUID
)

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ProductID) String() string { return uuid.UUID(id).String() }
func (id OrderID) String() string   { return uuid.UUID(id).String() }
func (id AddressID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AddressID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewProductID() ProductID { return ProductID(uuid.New()) }
func NewOrderID() OrderID     { return OrderID(uuid.New()) }
func NewAddressID() AddressID { return AddressID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseProductID(s string) (ProductID, error) {
	u, err := parseUUID(s, "product_id")
	return ProductID(u), err
}

func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID(s, "order_id")
	return OrderID(u), err
}

func ParseAddressID(s string) (AddressID, error) {
	u, err := parseUUID(s, "address_id")
	return AddressID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ProductID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OrderID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AddressID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProductID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrderID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AddressID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
