package models

import (
	"strings"
	"time"
	"unicode"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

// Product is a sellable catalog entry. Price is in minor units of Currency.
//
// Invariants:
//   - Slug is unique and URL-safe
//   - Price and Stock are never negative
//   - archived products (Active=false) are hidden from shoppers but kept
//     so historical orders still resolve
type Product struct {
	ID          id.ProductID `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Price       int64        `json:"price"`
	Currency    string       `json:"currency"`
	Stock       int          `json:"stock"`
	Images      []string     `json:"images"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func NewProduct(productID id.ProductID, name, slug, description, category string, price int64, currency string, stock int, images []string, now time.Time) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "product name is required")
	}
	if slug == "" {
		slug = Slugify(name)
	}
	if !ValidSlug(slug) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "slug must be lowercase letters, digits and dashes")
	}
	if price < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "price cannot be negative")
	}
	if stock < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stock cannot be negative")
	}
	if images == nil {
		images = []string{}
	}
	return &Product{
		ID:          productID,
		Slug:        slug,
		Name:        name,
		Description: strings.TrimSpace(description),
		Category:    strings.ToLower(strings.TrimSpace(category)),
		Price:       price,
		Currency:    currency,
		Stock:       stock,
		Images:      images,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// InStock reports whether qty units can be sold.
func (p *Product) InStock(qty int) bool {
	return p.Active && p.Stock >= qty
}

// Slugify lowercases s and collapses every run of non-alphanumerics to a dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func ValidSlug(s string) bool {
	if s == "" || len(s) > 120 || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// Sort orders product listings.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

func (s Sort) IsValid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
		return true
	}
	return false
}

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
	MaxSearchLimit  = 20
)

// ListFilter narrows catalog listings.
type ListFilter struct {
	Category        string
	Sort            Sort
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Page clamps paging and defaults the sort.
func (f *ListFilter) Page() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Sort == "" {
		f.Sort = SortNewest
	}
}
