package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *IdentityStoreSuite) user(email string) *models.User {
	u, err := models.NewUser(id.NewUserID(), email, "", "hash", id.RoleUser, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateUser(s.ctx, u))
	return u
}

func (s *IdentityStoreSuite) TestUsers() {
	s.Run("lookup by id and email", func() {
		u := s.user("ada@example.com")
		got, err := s.store.FindUserByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u, got)

		got, err = s.store.FindUserByEmail(s.ctx, "ada@example.com")
		s.Require().NoError(err)
		s.Equal(u.ID, got.ID)
	})

	s.Run("email is unique", func() {
		dup, _ := models.NewUser(id.NewUserID(), "ADA@example.com", "", "hash", id.RoleUser, time.Now())
		s.ErrorIs(s.store.CreateUser(s.ctx, dup), sentinel.ErrAlreadyUsed)
	})

	s.Run("update re-indexes email", func() {
		u := s.user("grace@example.com")
		u.Email = "hopper@example.com"
		s.Require().NoError(s.store.UpdateUser(s.ctx, u))
		_, err := s.store.FindUserByEmail(s.ctx, "grace@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)

		u.Email = "ada@example.com"
		s.ErrorIs(s.store.UpdateUser(s.ctx, u), sentinel.ErrAlreadyUsed)
	})

	s.Run("missing user", func() {
		_, err := s.store.FindUserByID(s.ctx, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *IdentityStoreSuite) TestAddresses() {
	owner, other := id.NewUserID(), id.NewUserID()
	base := time.Date(2025, 5, 4, 9, 0, 0, 0, time.UTC)
	first := &models.Address{ID: id.NewAddressID(), UserID: owner, City: "Leeds", CreatedAt: base}
	second := &models.Address{ID: id.NewAddressID(), UserID: owner, City: "York", IsDefault: true, CreatedAt: base.Add(time.Hour)}
	s.Require().NoError(s.store.CreateAddress(s.ctx, first))
	s.Require().NoError(s.store.CreateAddress(s.ctx, second))

	list, err := s.store.ListAddresses(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID, "default sorts first")

	s.Require().NoError(s.store.ClearDefault(s.ctx, owner))
	list, _ = s.store.ListAddresses(s.ctx, owner)
	s.Equal(first.ID, list[0].ID)
	s.False(list[1].IsDefault)

	_, err = s.store.FindAddress(s.ctx, other, first.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "addresses are scoped to their owner")
	s.ErrorIs(s.store.DeleteAddress(s.ctx, other, first.ID), sentinel.ErrNotFound)

	s.Require().NoError(s.store.DeleteAddress(s.ctx, owner, first.ID))
	_, err = s.store.FindAddress(s.ctx, owner, first.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
