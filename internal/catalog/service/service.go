package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"storefront/internal/catalog/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	audit "storefront/pkg/platform/audit"
	"storefront/pkg/platform/sentinel"
	txcontext "storefront/pkg/platform/tx"
	"storefront/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, productID id.ProductID) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error)
	Search(ctx context.Context, q string, limit int) ([]*models.Product, error)
	AdjustStock(ctx context.Context, deltas map[id.ProductID]int) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages the product catalog and its stock.
type Service struct {
	store          Store
	currency       string
	tx             txcontext.Runner
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

// New builds a catalog priced in currency.
func New(store Store, currency string, opts ...Option) *Service {
	s := &Service{store: store, currency: currency, tx: txcontext.NewMemoryRunner(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	p, err := models.NewProduct(id.NewProductID(), req.Name, req.Slug, req.Description, req.Category,
		req.Price, s.currency, req.Stock, req.Images, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "slug is already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create product")
	}
	s.emit(ctx, audit.EventProductCreated, p.ID, "")
	return p, nil
}

func (s *Service) Update(ctx context.Context, productID id.ProductID, req *models.UpdateProductRequest) (*models.Product, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update product")
	}
	s.emit(ctx, audit.EventProductUpdated, p.ID, "")
	return p, nil
}

// Archive hides a product from shoppers. Orders that reference it keep
// their line-item snapshot.
func (s *Service) Archive(ctx context.Context, productID id.ProductID) error {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive product")
	}
	s.emit(ctx, audit.EventProductArchived, p.ID, "")
	return nil
}

// AdjustStock adds delta (possibly negative) to a product's stock.
func (s *Service) AdjustStock(ctx context.Context, productID id.ProductID, delta int) (*models.Product, error) {
	if err := s.adjust(ctx, map[id.ProductID]int{productID: delta}); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventProductUpdated, productID, "stock adjusted")
	return p, nil
}

// Get returns a product regardless of whether it is active.
func (s *Service) Get(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	p, err := s.store.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	return p, nil
}

// GetBySlug returns an active product for the storefront.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	p, err := s.store.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	if !p.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error) {
	if filter.Sort != "" && !filter.Sort.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown sort %q", filter.Sort)
	}
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	products, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list products")
	}
	return products, nil
}

// Search backs search-as-you-type. Short or empty queries return nothing.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]*models.Product, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < 2 {
		return []*models.Product{}, nil
	}
	if limit <= 0 || limit > models.MaxSearchLimit {
		limit = models.MaxSearchLimit
	}
	products, err := s.store.Search(ctx, q, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search products")
	}
	return products, nil
}

// Lookup loads products by ID for pricing carts and orders.
func (s *Service) Lookup(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error) {
	products, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load products")
	}
	return products, nil
}

// Reserve takes stock for every line or none.
func (s *Service) Reserve(ctx context.Context, quantities map[id.ProductID]int) error {
	deltas := make(map[id.ProductID]int, len(quantities))
	for productID, qty := range quantities {
		if qty <= 0 {
			return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
		}
		deltas[productID] = -qty
	}
	return s.adjust(ctx, deltas)
}

// Release returns reserved stock.
func (s *Service) Release(ctx context.Context, quantities map[id.ProductID]int) error {
	deltas := make(map[id.ProductID]int, len(quantities))
	for productID, qty := range quantities {
		if qty > 0 {
			deltas[productID] = qty
		}
	}
	return s.adjust(ctx, deltas)
}

func (s *Service) adjust(ctx context.Context, deltas map[id.ProductID]int) error {
	if len(deltas) == 0 {
		return nil
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.AdjustStock(ctx, deltas)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrInsufficientStock):
		return dErrors.New(dErrors.CodeConflict, "insufficient stock")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "product not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to adjust stock")
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, productID id.ProductID, reason string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    requestcontext.UserID(ctx),
		ActorRole: string(requestcontext.Role(ctx)),
		Subject:   productID.String(),
		Action:    string(event),
		Reason:    reason,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record catalog event", "action", event, "error", err)
	}
}
