package models

import (
	"strings"

	dErrors "storefront/pkg/domain-errors"
	strutil "storefront/pkg/platform/strings"
)

type CreateProductRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
}

func (r *CreateProductRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Images = strutil.DedupeAndTrim(r.Images)
}

func (r *CreateProductRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 200 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 200 characters")
	}
	if r.Slug != "" && !ValidSlug(r.Slug) {
		return dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits and dashes")
	}
	if r.Price < 0 {
		return dErrors.New(dErrors.CodeValidation, "price cannot be negative")
	}
	if r.Stock < 0 {
		return dErrors.New(dErrors.CodeValidation, "stock cannot be negative")
	}
	return nil
}

// UpdateProductRequest carries optional field changes; nil leaves a field as is.
type UpdateProductRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Price       *int64    `json:"price"`
	Images      *[]string `json:"images"`
	Active      *bool     `json:"active"`
}

func (r *UpdateProductRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Category != nil {
		lowered := strings.ToLower(strings.TrimSpace(*r.Category))
		r.Category = &lowered
	}
	if r.Images != nil {
		images := strutil.DedupeAndTrim(*r.Images)
		r.Images = &images
	}
}

func (r *UpdateProductRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.Price != nil && *r.Price < 0 {
		return dErrors.New(dErrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

// Apply copies set fields onto p.
func (r *UpdateProductRequest) Apply(p *Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = strings.TrimSpace(*r.Description)
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Images != nil {
		p.Images = *r.Images
	}
	if r.Active != nil {
		p.Active = *r.Active
	}
}

type AdjustStockRequest struct {
	Delta int `json:"delta"`
}

func (r *AdjustStockRequest) Normalize() {}

func (r *AdjustStockRequest) Validate() error {
	if r.Delta == 0 {
		return dErrors.New(dErrors.CodeValidation, "delta must be non-zero")
	}
	return nil
}
