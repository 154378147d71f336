package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var columnNames = []string{
	"id", "slug", "name", "description", "category", "price", "currency",
	"stock", "images", "active", "created_at", "updated_at",
}

func TestPostgresFindBySlug(t *testing.T) {
	store, mock := newMockStore(t)
	productID := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE slug = $1")).
		WithArgs("mug").
		WillReturnRows(sqlmock.NewRows(columnNames).
			AddRow(productID.String(), "mug", "Mug", "", "kitchen", 1500, "USD", 4, "{a.png,b.png}", true, now, now))

	p, err := store.FindBySlug(context.Background(), "mug")
	require.NoError(t, err)
	assert.Equal(t, id.ProductID(productID), p.ID)
	assert.Equal(t, []string{"a.png", "b.png"}, p.Images)
	assert.Equal(t, 4, p.Stock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicateSlug(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&pq.Error{Code: "23505"})

	p, err := models.NewProduct(id.NewProductID(), "Mug", "", "", "", 1, "USD", 0, nil, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, store.Create(context.Background(), p), sentinel.ErrAlreadyUsed)
}

func TestPostgresListBuildsQuery(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active AND category = $1 ORDER BY price ASC, slug LIMIT $2 OFFSET $3")).
		WithArgs("kitchen", 10, 20).
		WillReturnRows(sqlmock.NewRows(columnNames))

	got, err := store.List(context.Background(), models.ListFilter{Category: "kitchen", Sort: models.SortPriceAsc, Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchEscapesWildcards(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("lower(name) LIKE '%' || $1 || '%'")).
		WithArgs(`50\% off`, 5).
		WillReturnRows(sqlmock.NewRows(columnNames))

	_, err := store.Search(context.Background(), "50% OFF", 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjustStock(t *testing.T) {
	t.Run("insufficient stock", func(t *testing.T) {
		store, mock := newMockStore(t)
		productID := id.NewProductID()
		now := time.Now()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
			WithArgs(-3, uuid.UUID(productID)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow(productID.String(), "mug", "Mug", "", "", 1, "USD", 1, "{}", true, now, now))

		err := store.AdjustStock(context.Background(), map[id.ProductID]int{productID: -3})
		assert.ErrorIs(t, err, sentinel.ErrInsufficientStock)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown product", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(columnNames))

		err := store.AdjustStock(context.Background(), map[id.ProductID]int{id.NewProductID(): -1})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
