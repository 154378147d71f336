package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
)

// PostgresStore persists users and addresses in PostgreSQL. Email
// uniqueness is enforced by a unique index on users.email, which is always
// stored lower-cased.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(u.ID), u.Email, u.Name, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE users SET email = $2, name = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, uuid.UUID(u.ID), u.Email, u.Name, u.PasswordHash, string(u.Role), u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res, "update user")
}

func (s *PostgresStore) FindUserByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findUser(ctx, `WHERE id = $1`, uuid.UUID(userID))
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg)
	var (
		u      models.User
		userID uuid.UUID
		role   string
	)
	if err := row.Scan(&userID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.Role = id.Role(role)
	return &u, nil
}

const addressColumns = `id, user_id, label, full_name, phone, line1, line2, city, region, postal_code, country, is_default, created_at, updated_at`

func addressArgs(a *models.Address) []any {
	return []any{
		uuid.UUID(a.ID), uuid.UUID(a.UserID), a.Label, a.FullName, a.Phone, a.Line1, a.Line2,
		a.City, a.Region, a.PostalCode, a.Country, a.IsDefault, a.CreatedAt, a.UpdatedAt,
	}
}

func (s *PostgresStore) CreateAddress(ctx context.Context, a *models.Address) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO addresses (`+addressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, addressArgs(a)...)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAddress(ctx context.Context, a *models.Address) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE addresses SET
			label = $3, full_name = $4, phone = $5, line1 = $6, line2 = $7, city = $8,
			region = $9, postal_code = $10, country = $11, is_default = $12, created_at = $13, updated_at = $14
		WHERE id = $1 AND user_id = $2
	`, addressArgs(a)...)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return expectOne(res, "update address")
}

func (s *PostgresStore) DeleteAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, uuid.UUID(addressID), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return expectOne(res, "delete address")
}

func (s *PostgresStore) FindAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) (*models.Address, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, uuid.UUID(addressID), uuid.UUID(userID))
	a, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find address: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAddresses(ctx context.Context, userID id.UserID) ([]*models.Address, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()
	var out []*models.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearDefault(ctx context.Context, userID id.UserID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (*models.Address, error) {
	var (
		a         models.Address
		addressID uuid.UUID
		userID    uuid.UUID
	)
	err := row.Scan(&addressID, &userID, &a.Label, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.Region, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = id.AddressID(addressID)
	a.UserID = id.UserID(userID)
	return &a, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
