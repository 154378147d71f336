package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/internal/order/models"
	"storefront/internal/order/workflow"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
)

// PostgresStore persists orders in PostgreSQL. Items, address and history are
// JSONB columns; the row is overwritten on every update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, number, user_id, items, subtotal, shipping_fee, total, currency,
	status, payment_status, payment_method, payment_ref, shipping_address,
	assigned_to, note, history, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	args, err := orderArgs(order)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, order *models.Order) error {
	args, err := orderArgs(order)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE orders SET
			number = $2, user_id = $3, items = $4, subtotal = $5, shipping_fee = $6,
			total = $7, currency = $8, status = $9, payment_status = $10,
			payment_method = $11, payment_ref = $12, shipping_address = $13,
			assigned_to = $14, note = $15, history = $16, created_at = $17, updated_at = $18
		WHERE id = $1
	`, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	// Inside a transaction the caller is about to write; serialize on the row.
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(orderID))
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Order, error) {
	filter.Page()
	where, args := buildWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) Stats(ctx context.Context, filter models.Filter) (*models.Stats, error) {
	where, args := buildWhere(filter)
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT status, payment_status, payment_method, currency, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders `+where+`
		GROUP BY status, payment_status, payment_method, currency
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := models.NewStats()
	for rows.Next() {
		var (
			status, payment, method, currency string
			count                             int
			total                             int64
		)
		if err := rows.Scan(&status, &payment, &method, &currency, &count, &total); err != nil {
			return nil, fmt.Errorf("scan order stats: %w", err)
		}
		stats.AddGroup(workflow.Status(status), workflow.PaymentStatus(payment), workflow.PaymentMethod(method), currency, count, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order stats: %w", err)
	}
	return stats, nil
}

func buildWhere(f models.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != nil {
		add("user_id = $%d", uuid.UUID(*f.UserID))
	}
	if f.AssignedTo != nil {
		if f.IncludeUnassigned {
			add("(assigned_to = $%d OR assigned_to IS NULL)", uuid.UUID(*f.AssignedTo))
		} else {
			add("assigned_to = $%d", uuid.UUID(*f.AssignedTo))
		}
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if len(f.PaymentStatuses) > 0 {
		payments := make([]string, len(f.PaymentStatuses))
		for i, p := range f.PaymentStatuses {
			payments[i] = string(p)
		}
		add("payment_status = ANY($%d)", pq.Array(payments))
	}
	if f.Method != "" {
		add("payment_method = $%d", string(f.Method))
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func orderArgs(o *models.Order) ([]any, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal order items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	history, err := json.Marshal(o.History)
	if err != nil {
		return nil, fmt.Errorf("marshal order history: %w", err)
	}
	var assigned uuid.NullUUID
	if o.AssignedTo != nil {
		assigned = uuid.NullUUID{UUID: uuid.UUID(*o.AssignedTo), Valid: true}
	}
	return []any{
		uuid.UUID(o.ID), o.Number, uuid.UUID(o.UserID), items, o.Subtotal, o.ShippingFee,
		o.Total, o.Currency, string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod),
		o.PaymentRef, address, assigned, o.Note, history, o.CreatedAt, o.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o                       models.Order
		orderID, userID         uuid.UUID
		assigned                uuid.NullUUID
		items, address, history []byte
		status, payment, method string
	)
	err := row.Scan(&orderID, &o.Number, &userID, &items, &o.Subtotal, &o.ShippingFee,
		&o.Total, &o.Currency, &status, &payment, &method, &o.PaymentRef, &address,
		&assigned, &o.Note, &history, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ID = id.OrderID(orderID)
	o.UserID = id.UserID(userID)
	o.Status = workflow.Status(status)
	o.PaymentStatus = workflow.PaymentStatus(payment)
	o.PaymentMethod = workflow.PaymentMethod(method)
	if assigned.Valid {
		a := id.UserID(assigned.UUID)
		o.AssignedTo = &a
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(history, &o.History); err != nil {
		return nil, fmt.Errorf("unmarshal order history: %w", err)
	}
	return &o, nil
}
