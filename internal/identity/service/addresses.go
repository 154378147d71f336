package service

import (
	"context"
	"errors"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/sentinel"
	"storefront/pkg/requestcontext"
)

func (s *Service) ListAddresses(ctx context.Context, userID id.UserID) ([]*models.Address, error) {
	addrs, err := s.store.ListAddresses(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list addresses")
	}
	if addrs == nil {
		addrs = []*models.Address{}
	}
	return addrs, nil
}

// GetAddress returns one of the user's addresses. Other users' addresses
// are reported as not found.
func (s *Service) GetAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) (*models.Address, error) {
	a, err := s.store.FindAddress(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address")
	}
	return a, nil
}

// DefaultAddress returns the user's default address.
func (s *Service) DefaultAddress(ctx context.Context, userID id.UserID) (*models.Address, error) {
	addrs, err := s.ListAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 || !addrs[0].IsDefault {
		return nil, dErrors.New(dErrors.CodeNotFound, "no default address")
	}
	return addrs[0], nil
}

// CreateAddress adds an address. The first address becomes the default.
func (s *Service) CreateAddress(ctx context.Context, userID id.UserID, req *models.AddressRequest) (*models.Address, error) {
	now := requestcontext.Now(ctx)
	a := &models.Address{ID: id.NewAddressID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	req.Apply(a)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.ListAddresses(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list addresses")
		}
		if len(existing) >= models.MaxAddresses {
			return dErrors.Newf(dErrors.CodeConflict, "address book is limited to %d entries", models.MaxAddresses)
		}
		a.IsDefault = req.IsDefault || len(existing) == 0
		if a.IsDefault {
			if err := s.store.ClearDefault(ctx, userID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update default address")
			}
		}
		if err := s.store.CreateAddress(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAddress replaces an address. Asking for default moves the default;
// the current default cannot be un-defaulted directly.
func (s *Service) UpdateAddress(ctx context.Context, userID id.UserID, addressID id.AddressID, req *models.AddressRequest) (*models.Address, error) {
	var updated *models.Address
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.GetAddress(ctx, userID, addressID)
		if err != nil {
			return err
		}
		req.Apply(a)
		a.UpdatedAt = requestcontext.Now(ctx)
		if req.IsDefault && !a.IsDefault {
			if err := s.store.ClearDefault(ctx, userID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update default address")
			}
			a.IsDefault = true
		}
		if err := s.store.UpdateAddress(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update address")
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAddress removes an address. Deleting the default promotes the
// oldest remaining address.
func (s *Service) DeleteAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.GetAddress(ctx, userID, addressID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteAddress(ctx, userID, addressID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete address")
		}
		if !a.IsDefault {
			return nil
		}
		rest, err := s.store.ListAddresses(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list addresses")
		}
		if len(rest) == 0 {
			return nil
		}
		next := rest[0]
		next.IsDefault = true
		next.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpdateAddress(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote default address")
		}
		return nil
	})
}
