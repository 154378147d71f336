package store

import (
	"context"
	"slices"
	"sync"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

// InMemory stores users and address books in process memory.
type InMemory struct {
	mu        sync.RWMutex
	users     map[id.UserID]*models.User
	byEmail   map[string]id.UserID
	addresses map[id.AddressID]*models.Address
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:     make(map[id.UserID]*models.User),
		byEmail:   make(map[string]id.UserID),
		addresses: make(map[id.AddressID]*models.Address),
	}
}

func (s *InMemory) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.users[u.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	copied := *u
	s.users[u.ID] = &copied
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemory) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.byEmail[u.Email]; taken && owner != u.ID {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.byEmail, existing.Email)
	copied := *u
	s.users[u.ID] = &copied
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemory) FindUserByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *InMemory) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

func (s *InMemory) CreateAddress(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.addresses[a.ID] = &copied
	return nil
}

func (s *InMemory) UpdateAddress(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.addresses[a.ID]
	if !ok || existing.UserID != a.UserID {
		return sentinel.ErrNotFound
	}
	copied := *a
	s.addresses[a.ID] = &copied
	return nil
}

func (s *InMemory) DeleteAddress(_ context.Context, userID id.UserID, addressID id.AddressID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.addresses[addressID]
	if !ok || existing.UserID != userID {
		return sentinel.ErrNotFound
	}
	delete(s.addresses, addressID)
	return nil
}

func (s *InMemory) FindAddress(_ context.Context, userID id.UserID, addressID id.AddressID) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

// ListAddresses returns the user's addresses, default first, then oldest first.
func (s *InMemory) ListAddresses(_ context.Context, userID id.UserID) ([]*models.Address, error) {
	s.mu.RLock()
	var out []*models.Address
	for _, a := range s.addresses {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	s.mu.RUnlock()
	sortAddresses(out)
	return out, nil
}

// ClearDefault unsets the default flag on every address of the user.
func (s *InMemory) ClearDefault(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addresses {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
	return nil
}

func sortAddresses(addrs []*models.Address) {
	slices.SortStableFunc(addrs, func(a, b *models.Address) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return -1
			}
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
