// Package service implements accounts, sign-in and address books.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/identity/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	audit "storefront/pkg/platform/audit"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
	"storefront/pkg/requestcontext"
)

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateAddress(ctx context.Context, a *models.Address) error
	UpdateAddress(ctx context.Context, a *models.Address) error
	DeleteAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) error
	FindAddress(ctx context.Context, userID id.UserID, addressID id.AddressID) (*models.Address, error)
	ListAddresses(ctx context.Context, userID id.UserID) ([]*models.Address, error)
	ClearDefault(ctx context.Context, userID id.UserID) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role id.Role, expiresIn time.Duration) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncrementUsersCreated()
}

type Service struct {
	store          Store
	tokens         TokenIssuer
	tokenTTL       time.Duration
	bcryptCost     int
	tx             txcontext.Runner
	auditPublisher AuditPublisher
	metrics        Metrics
	logger         *slog.Logger

	// dummyHash is compared against when the email is unknown so both
	// login failure paths cost one bcrypt comparison.
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost lowers hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		tokens:     tokens,
		tokenTTL:   24 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		tx:         txcontext.NewMemoryRunner(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), s.bcryptCost)
	return s
}

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.TokenResult, error) {
	u, err := s.createUser(ctx, req.Email, req.Name, req.Password, id.RoleUser)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventUserRegistered, u.ID, u.ID, "", string(u.Role), "")
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error) {
	u, err := s.store.FindUserByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || u == nil {
		s.logger.WarnContext(ctx, "login failed",
			"log_type", "audit",
			"client_ip", requestcontext.ClientIP(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		var subject id.UserID
		if u != nil {
			subject = u.ID
		}
		s.emit(ctx, audit.EventLoginFailed, id.UserID{}, subject, "", "", "invalid credentials")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	return s.issue(u)
}

func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.getUser(ctx, userID)
}

// RoleOf reports a user's current role.
func (s *Service) RoleOf(ctx context.Context, userID id.UserID) (id.Role, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// SetRole changes a user's role. Admins cannot demote themselves, which
// keeps at least the acting admin in place.
func (s *Service) SetRole(ctx context.Context, actorID id.UserID, userID id.UserID, role id.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown role %q", role)
	}
	if actorID == userID && role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admins cannot change their own role")
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	from := u.Role
	u.Role = role
	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	s.logger.InfoContext(ctx, "user role changed",
		"log_type", "audit",
		"user_id", u.ID.String(),
		"from", from,
		"to", role,
		"actor_id", actorID.String(),
	)
	s.emit(ctx, audit.EventRoleChanged, actorID, u.ID, string(from), string(role), "")
	return u, nil
}

// EnsureAdmin creates the bootstrap admin, or promotes the existing account
// with that email. It never resets an existing password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if !models.ValidEmail(email) {
		return nil, dErrors.New(dErrors.CodeValidation, "bootstrap admin email is invalid")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == id.RoleAdmin {
			return existing, nil
		}
		existing.Role = id.RoleAdmin
		existing.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpdateUser(ctx, existing); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote bootstrap admin")
		}
		s.logger.InfoContext(ctx, "bootstrap admin promoted", "user_id", existing.ID.String())
		return existing, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load bootstrap admin")
	}
	u, err := s.createUser(ctx, email, "Administrator", password, id.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "bootstrap admin created", "user_id", u.ID.String())
	return u, nil
}

func (s *Service) createUser(ctx context.Context, email, name, password string, role id.Role) (*models.User, error) {
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	u, err := models.NewUser(id.NewUserID(), email, name, string(hash), role, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	return u, nil
}

func (s *Service) issue(u *models.User) (*models.TokenResult, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID, u.Role, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &models.TokenResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt, User: u}, nil
}

func (s *Service) getUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return u, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, actorID, subject id.UserID, from, to, reason string) {
	if s.auditPublisher == nil {
		return
	}
	var subjectID string
	if !subject.IsNil() {
		subjectID = subject.String()
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    actorID,
		ActorRole: string(requestcontext.Role(ctx)),
		Subject:   subjectID,
		Action:    string(event),
		From:      from,
		To:        to,
		Reason:    reason,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record identity event", "action", event, "error", err)
	}
}
