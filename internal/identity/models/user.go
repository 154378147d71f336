package models

import (
	"net/mail"
	"strings"
	"time"

	id "storefront/pkg/domain"
	"storefront/pkg/email"
	dErrors "storefront/pkg/domain-errors"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordBytes = 72
)

// User is a shopper or back-office account.
//
// Invariants:
//   - Email is stored lower-cased and unique
//   - Role is one of the known roles
type User struct {
	ID           id.UserID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         id.Role   `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewUser(userID id.UserID, email, name, passwordHash string, role id.Role, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown role %q", role)
	}
	return &User{
		ID:           userID,
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" && r.Email != "" {
		r.Name = email.DisplayName(r.Email)
	}
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !ValidEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if len(r.Name) > 120 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 120 characters")
	}
	return ValidatePassword(r.Password)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

type RoleRequest struct {
	Role string `json:"role"`

	role id.Role
}

func (r *RoleRequest) Normalize() {
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
}

func (r *RoleRequest) Validate() error {
	role, ok := id.ParseRole(r.Role)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown role %q", r.Role)
	}
	r.role = role
	return nil
}

// Parsed returns the role after Validate.
func (r *RoleRequest) Parsed() id.Role {
	return r.role
}

// TokenResult is returned on register and login.
type TokenResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
