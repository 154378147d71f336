package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"storefront/internal/cart/models"
	id "storefront/pkg/domain"
)

// InMemory keeps carts and favorites in process memory.
type InMemory struct {
	mu        sync.RWMutex
	carts     map[id.UserID]map[id.ProductID]int
	favorites map[id.UserID]map[id.ProductID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		carts:     make(map[id.UserID]map[id.ProductID]int),
		favorites: make(map[id.UserID]map[id.ProductID]struct{}),
	}
}

func (s *InMemory) Items(_ context.Context, userID id.UserID) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Item, 0, len(s.carts[userID]))
	for productID, qty := range s.carts[userID] {
		items = append(items, models.Item{ProductID: productID, Quantity: qty})
	}
	sortItems(items)
	return items, nil
}

// SetQuantity stores qty for a product; zero removes the line.
func (s *InMemory) SetQuantity(_ context.Context, userID id.UserID, productID id.ProductID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qty <= 0 {
		delete(s.carts[userID], productID)
		return nil
	}
	cart, ok := s.carts[userID]
	if !ok {
		cart = make(map[id.ProductID]int)
		s.carts[userID] = cart
	}
	cart[productID] = qty
	return nil
}

func (s *InMemory) Remove(_ context.Context, userID id.UserID, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[userID], productID)
	return nil
}

func (s *InMemory) Clear(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *InMemory) AddFavorite(_ context.Context, userID id.UserID, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	favs, ok := s.favorites[userID]
	if !ok {
		favs = make(map[id.ProductID]struct{})
		s.favorites[userID] = favs
	}
	favs[productID] = struct{}{}
	return nil
}

func (s *InMemory) RemoveFavorite(_ context.Context, userID id.UserID, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites[userID], productID)
	return nil
}

func (s *InMemory) Favorites(_ context.Context, userID id.UserID) ([]id.ProductID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.ProductID, 0, len(s.favorites[userID]))
	for productID := range s.favorites[userID] {
		out = append(out, productID)
	}
	sortIDs(out)
	return out, nil
}

func sortItems(items []models.Item) {
	slices.SortFunc(items, func(a, b models.Item) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
}

func sortIDs(ids []id.ProductID) {
	slices.SortFunc(ids, func(a, b id.ProductID) int {
		return strings.Compare(a.String(), b.String())
	})
}
