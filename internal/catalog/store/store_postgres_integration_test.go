//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"storefront/internal/catalog/models"
	"storefront/internal/catalog/store"
	"storefront/internal/platform/postgres"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
	"storefront/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	tx       *txcontext.PostgresRunner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = txcontext.NewPostgresRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "products"))
}

func (s *PostgresStoreSuite) product(name, slug string, stock int) *models.Product {
	p, err := models.NewProduct(id.NewProductID(), name, slug, "", "kitchen", 1200, "USD", stock, []string{"mug.jpg"}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), p))
	return p
}

func (s *PostgresStoreSuite) TestRoundTripAndSlugUniqueness() {
	ctx := context.Background()
	p := s.product("Ceramic Mug", "ceramic-mug", 4)

	found, err := s.store.FindBySlug(ctx, "ceramic-mug")
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal([]string{"mug.jpg"}, found.Images)

	dup, err := models.NewProduct(id.NewProductID(), "Other", "ceramic-mug", "", "", 100, "USD", 1, nil, time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestSearchRanksPrefixFirst() {
	s.product("Travel Mug", "travel-mug", 1)
	s.product("Mug Tree", "mug-tree", 1)
	s.product("100% Cotton Towel", "towel", 1)

	got, err := s.store.Search(context.Background(), "mug", 10)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("Mug Tree", got[0].Name)

	got, err = s.store.Search(context.Background(), "100%", 10)
	s.Require().NoError(err)
	s.Len(got, 1, "percent is matched literally")
}

// TestConcurrentReserveNeverOversells races more buyers than stock.
func (s *PostgresStoreSuite) TestConcurrentReserveNeverOversells() {
	p := s.product("Limited Print", "limited-print", 5)
	const buyers = 20

	var wg sync.WaitGroup
	var ok, short atomic.Int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.tx.RunInTx(context.Background(), func(ctx context.Context) error {
				return s.store.AdjustStock(ctx, map[id.ProductID]int{p.ID: -1})
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentinel.ErrInsufficientStock):
				short.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(5), ok.Load())
	s.Equal(int32(buyers-5), short.Load())
	found, err := s.store.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(0, found.Stock)
}

func (s *PostgresStoreSuite) TestAdjustStockRollsBackAllRows() {
	a := s.product("A", "a", 3)
	b := s.product("B", "b", 0)

	err := s.tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return s.store.AdjustStock(ctx, map[id.ProductID]int{a.ID: -1, b.ID: -1})
	})
	s.ErrorIs(err, sentinel.ErrInsufficientStock)

	found, err := s.store.FindByID(context.Background(), a.ID)
	s.Require().NoError(err)
	s.Equal(3, found.Stock)
}
