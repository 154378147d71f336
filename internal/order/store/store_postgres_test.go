package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/order/models"
	"storefront/internal/order/workflow"
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
	"id", "number", "user_id", "items", "subtotal", "shipping_fee", "total", "currency",
	"status", "payment_status", "payment_method", "payment_ref", "shipping_address",
	"assigned_to", "note", "history", "created_at", "updated_at",
}

func TestPostgresFindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("maps no rows to ErrNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
			WillReturnError(sql.ErrNoRows)

		_, err := store.FindByID(ctx, id.NewOrderID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decodes json columns", func(t *testing.T) {
		store, mock := newMockStore(t)
		orderID := uuid.New()
		userID := uuid.New()
		productID := uuid.New()
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		items, _ := json.Marshal([]models.LineItem{{ProductID: id.ProductID(productID), Name: "Kettle", UnitPrice: 2999, Quantity: 1, LineTotal: 2999}})
		address, _ := json.Marshal(models.ShippingAddress{City: "Porto"})

		mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows(columnNames).AddRow(
				orderID.String(), "260102-abcdef01", userID.String(), items, 2999, 0, 2999, "EUR",
				"packed", "paid", "card", "pi_123", address,
				nil, "", []byte(`[]`), now, now,
			))

		order, err := store.FindByID(ctx, id.OrderID(orderID))
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusPacked, order.Status)
		assert.Equal(t, workflow.PaymentPaid, order.PaymentStatus)
		assert.Equal(t, "Porto", order.ShippingAddress.City)
		assert.Equal(t, id.ProductID(productID), order.Items[0].ProductID)
		assert.Nil(t, order.AssignedTo)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	order, err := models.NewOrder(id.NewOrderID(), id.NewUserID(),
		[]models.LineItem{{ProductID: id.NewProductID(), Name: "Rug", UnitPrice: 9000, Quantity: 1}},
		0, "USD", workflow.MethodCOD, models.ShippingAddress{}, "", time.Now())
	require.NoError(t, err)

	t.Run("unique violation maps to ErrAlreadyUsed", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
			WillReturnError(&pq.Error{Code: "23505"})

		require.ErrorIs(t, store.Create(ctx, order), sentinel.ErrAlreadyUsed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update of missing row is ErrNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, store.Update(ctx, order), sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildWhere(t *testing.T) {
	userID := id.NewUserID()
	where, args := buildWhere(models.Filter{
		UserID:   &userID,
		Statuses: []workflow.Status{workflow.StatusPacked, workflow.StatusShipped},
		Method:   workflow.MethodCard,
	})
	assert.Equal(t, "WHERE user_id = $1 AND status = ANY($2) AND payment_method = $3", where)
	assert.Len(t, args, 3)

	where, args = buildWhere(models.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestPostgresStats(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status, payment_status, payment_method, currency")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_status", "payment_method", "currency", "count", "sum"}).
			AddRow("delivered", "paid", "card", "USD", 2, 5000).
			AddRow("delivered", "paid", "card", "JPY", 1, 1000).
			AddRow("shipped", "pending", "cod", "USD", 1, 1200))

	stats, err := store.Stats(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int64{"USD": 5000, "JPY": 1000}, stats.RevenuePaid)
	assert.Equal(t, map[string]int64{"USD": 1200}, stats.OutstandingCOD)
	require.NoError(t, mock.ExpectationsWereMet())
}
