package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"storefront/internal/catalog/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

// InMemory is a product store for development and tests.
type InMemory struct {
	mu       sync.RWMutex
	products map[id.ProductID]*models.Product
	slugs    map[string]id.ProductID
}

func NewInMemory() *InMemory {
	return &InMemory{
		products: make(map[id.ProductID]*models.Product),
		slugs:    make(map[string]id.ProductID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.slugs[p.Slug]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.products[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.products[p.ID] = clone(p)
	s.slugs[p.Slug] = p.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.slugs[p.Slug]; taken && owner != p.ID {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.slugs, existing.Slug)
	s.products[p.ID] = clone(p)
	s.slugs[p.Slug] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, productID id.ProductID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	productID, ok := s.slugs[slug]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.products[productID]), nil
}

// FindByIDs returns the products that exist; missing IDs are simply absent.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.ProductID]*models.Product, len(ids))
	for _, productID := range ids {
		if p, ok := s.products[productID]; ok {
			out[productID] = clone(p)
		}
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Product, error) {
	filter.Page()
	s.mu.RLock()
	var matched []*models.Product
	for _, p := range s.products {
		if !filter.IncludeInactive && !p.Active {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Product) int {
		switch filter.Sort {
		case models.SortPriceAsc:
			return cmp.Or(cmp.Compare(a.Price, b.Price), cmp.Compare(a.Slug, b.Slug))
		case models.SortPriceDesc:
			return cmp.Or(cmp.Compare(b.Price, a.Price), cmp.Compare(a.Slug, b.Slug))
		case models.SortName:
			return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.Slug, b.Slug))
		default:
			return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.Slug, b.Slug))
		}
	})
	return page(matched, filter.Offset, filter.Limit), nil
}

// Search matches active products whose name contains q, case-insensitively.
// Names starting with q rank first.
func (s *InMemory) Search(_ context.Context, q string, limit int) ([]*models.Product, error) {
	q = strings.ToLower(q)
	s.mu.RLock()
	var matched []*models.Product
	for _, p := range s.products {
		if p.Active && strings.Contains(strings.ToLower(p.Name), q) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Product) int {
		ap := strings.HasPrefix(strings.ToLower(a.Name), q)
		bp := strings.HasPrefix(strings.ToLower(b.Name), q)
		if ap != bp {
			if ap {
				return -1
			}
			return 1
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return page(matched, 0, limit), nil
}

// AdjustStock applies every delta or none. A delta that would drive stock
// negative fails the whole batch with ErrInsufficientStock.
func (s *InMemory) AdjustStock(_ context.Context, deltas map[id.ProductID]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for productID, delta := range deltas {
		p, ok := s.products[productID]
		if !ok {
			return sentinel.ErrNotFound
		}
		if p.Stock+delta < 0 {
			return sentinel.ErrInsufficientStock
		}
	}
	for productID, delta := range deltas {
		s.products[productID].Stock += delta
	}
	return nil
}

func page(in []*models.Product, offset, limit int) []*models.Product {
	if offset >= len(in) {
		return []*models.Product{}
	}
	end := min(offset+limit, len(in))
	out := make([]*models.Product, 0, end-offset)
	for _, p := range in[offset:end] {
		out = append(out, clone(p))
	}
	return out
}

func clone(p *models.Product) *models.Product {
	c := *p
	c.Images = slices.Clone(p.Images)
	return &c
}
