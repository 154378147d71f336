package store

import (
	"context"
	"slices"
	"sync"

	"storefront/internal/order/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

// InMemory is an order store for development and tests. Orders are
// deep-copied on the way in and out so callers never share slices.
type InMemory struct {
	mu     sync.RWMutex
	orders map[id.OrderID]*models.Order
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[id.OrderID]*models.Order)}
}

func (s *InMemory) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.orders[order.ID] = clone(order)
	return nil
}

func (s *InMemory) Update(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.orders[order.ID] = clone(order)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orderID id.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(order), nil
}

// List returns matching orders newest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Order, error) {
	filter.Page()
	s.mu.RLock()
	matched := make([]*models.Order, 0)
	for _, order := range s.orders {
		if matches(order, filter) {
			matched = append(matched, order)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []*models.Order{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	out := make([]*models.Order, 0, end-filter.Offset)
	for _, order := range matched[filter.Offset:end] {
		out = append(out, clone(order))
	}
	return out, nil
}

func (s *InMemory) Stats(_ context.Context, filter models.Filter) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.NewStats()
	for _, order := range s.orders {
		if matches(order, filter) {
			stats.Add(order)
		}
	}
	return stats, nil
}

func matches(o *models.Order, f models.Filter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.AssignedTo != nil {
		switch {
		case o.AssignedTo == nil:
			if !f.IncludeUnassigned {
				return false
			}
		case *o.AssignedTo != *f.AssignedTo:
			return false
		}
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if len(f.PaymentStatuses) > 0 && !slices.Contains(f.PaymentStatuses, o.PaymentStatus) {
		return false
	}
	if f.Method != "" && o.PaymentMethod != f.Method {
		return false
	}
	if !f.CreatedBefore.IsZero() && !o.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.History = slices.Clone(o.History)
	if o.AssignedTo != nil {
		assigned := *o.AssignedTo
		c.AssignedTo = &assigned
	}
	return &c
}
