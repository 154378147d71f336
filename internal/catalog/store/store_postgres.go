package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/internal/catalog/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
)

// PostgresStore persists products in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, slug, name, description, category, price, currency, stock, images, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Product) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, productArgs(p)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Product) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE products SET
			slug = $2, name = $3, description = $4, category = $5, price = $6,
			currency = $7, stock = $8, images = $9, active = $10, created_at = $11, updated_at = $12
		WHERE id = $1
	`, productArgs(p)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(productID))
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.findOne(ctx, `WHERE slug = $1`, slug)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Product, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+productColumns+` FROM products `+where, arg)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error) {
	out := make(map[id.ProductID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, productID := range ids {
		raw[i] = productID.String()
	}
	products, err := s.query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

var sortClauses = map[models.Sort]string{
	models.SortNewest:    "created_at DESC, slug",
	models.SortPriceAsc:  "price ASC, slug",
	models.SortPriceDesc: "price DESC, slug",
	models.SortName:      "lower(name), slug",
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error) {
	filter.Page()
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeInactive {
		clauses = append(clauses, "active")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	order, ok := sortClauses[filter.Sort]
	if !ok {
		order = sortClauses[models.SortNewest]
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, where, order, len(args)-1, len(args))
	return s.query(ctx, query, args...)
}

// Search matches active products whose name contains q. Prefix matches rank first.
func (s *PostgresStore) Search(ctx context.Context, q string, limit int) ([]*models.Product, error) {
	pattern := escapeLike(strings.ToLower(q))
	return s.query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE active AND lower(name) LIKE '%' || $1 || '%'
		ORDER BY (lower(name) LIKE $1 || '%') DESC, lower(name)
		LIMIT $2
	`, pattern, limit)
}

// AdjustStock must run inside a transaction so a failed row rolls back the
// rest. Rows are updated in ID order to keep lock ordering stable.
func (s *PostgresStore) AdjustStock(ctx context.Context, deltas map[id.ProductID]int) error {
	ids := make([]id.ProductID, 0, len(deltas))
	for productID := range deltas {
		ids = append(ids, productID)
	}
	slices.SortFunc(ids, func(a, b id.ProductID) int { return strings.Compare(a.String(), b.String()) })

	exec := txcontext.Exec(ctx, s.db)
	for _, productID := range ids {
		res, err := exec.ExecContext(ctx, `
			UPDATE products SET stock = stock + $1, updated_at = now()
			WHERE id = $2 AND stock + $1 >= 0
		`, deltas[productID], uuid.UUID(productID))
		if err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("adjust stock rows affected: %w", err)
		}
		if n == 0 {
			if _, err := s.FindByID(ctx, productID); err != nil {
				return err
			}
			return sentinel.ErrInsufficientStock
		}
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func productArgs(p *models.Product) []any {
	return []any{
		uuid.UUID(p.ID), p.Slug, p.Name, p.Description, p.Category, p.Price,
		p.Currency, p.Stock, pq.Array(p.Images), p.Active, p.CreatedAt, p.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p         models.Product
		productID uuid.UUID
		images    pq.StringArray
	)
	err := row.Scan(&productID, &p.Slug, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Currency, &p.Stock, &images, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.ProductID(productID)
	p.Images = []string(images)
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
