package models

import (
	"strings"
	"time"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

// MaxAddresses caps a user's address book.
const MaxAddresses = 20

// Address is an entry in a user's address book. At most one address per
// user is the default.
type Address struct {
	ID         id.AddressID `json:"id"`
	UserID     id.UserID    `json:"user_id"`
	Label      string       `json:"label,omitempty"`
	FullName   string       `json:"full_name"`
	Phone      string       `json:"phone"`
	Line1      string       `json:"line1"`
	Line2      string       `json:"line2,omitempty"`
	City       string       `json:"city"`
	Region     string       `json:"region,omitempty"`
	PostalCode string       `json:"postal_code"`
	Country    string       `json:"country"`
	IsDefault  bool         `json:"is_default"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AddressRequest is the address form. It is also accepted inline at checkout.
type AddressRequest struct {
	Label      string `json:"label"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (r *AddressRequest) Normalize() {
	for _, f := range []*string{&r.Label, &r.FullName, &r.Phone, &r.Line1, &r.Line2, &r.City, &r.Region, &r.PostalCode} {
		*f = strings.TrimSpace(*f)
	}
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
}

func (r *AddressRequest) Validate() error {
	switch {
	case r.FullName == "":
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	case r.Phone == "":
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	case r.Line1 == "":
		return dErrors.New(dErrors.CodeValidation, "line1 is required")
	case r.City == "":
		return dErrors.New(dErrors.CodeValidation, "city is required")
	case r.PostalCode == "":
		return dErrors.New(dErrors.CodeValidation, "postal_code is required")
	case len(r.Country) != 2:
		return dErrors.New(dErrors.CodeValidation, "country must be a two-letter code")
	}
	if !validPhone(r.Phone) {
		return dErrors.New(dErrors.CodeValidation, "phone is invalid")
	}
	return nil
}

// Apply copies the form onto a.
func (r *AddressRequest) Apply(a *Address) {
	a.Label = r.Label
	a.FullName = r.FullName
	a.Phone = r.Phone
	a.Line1 = r.Line1
	a.Line2 = r.Line2
	a.City = r.City
	a.Region = r.Region
	a.PostalCode = r.PostalCode
	a.Country = r.Country
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 6 && digits <= 15
}
