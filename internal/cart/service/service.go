// Package service implements the shopping cart and favorites.
//
// Carts hold product IDs and quantities only. Every read reprices lines from
// the catalog, so a price change or archive is reflected immediately and
// checkout never trusts a stale price.
package service

import (
	"context"
	"log/slog"

	catalogmodels "storefront/internal/catalog/models"
	"storefront/internal/cart/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

type Store interface {
	Items(ctx context.Context, userID id.UserID) ([]models.Item, error)
	SetQuantity(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) error
	Remove(ctx context.Context, userID id.UserID, productID id.ProductID) error
	Clear(ctx context.Context, userID id.UserID) error
	AddFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error
	RemoveFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error
	Favorites(ctx context.Context, userID id.UserID) ([]id.ProductID, error)
}

// Catalog prices cart lines.
type Catalog interface {
	Lookup(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*catalogmodels.Product, error)
}

// Converter turns base-currency prices into a display currency.
type Converter interface {
	Normalize(code string) (string, error)
	Convert(amount int64, from, to string) (int64, error)
}

type Service struct {
	store     Store
	catalog   Catalog
	converter Converter
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, catalog Catalog, converter Converter, opts ...Option) *Service {
	s := &Service{store: store, catalog: catalog, converter: converter, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add merges qty into the existing line for the product.
func (s *Service) Add(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) (*models.View, error) {
	if err := models.ValidateQuantity(qty, false); err != nil {
		return nil, err
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cart")
	}
	for _, item := range items {
		if item.ProductID == productID {
			qty += item.Quantity
			break
		}
	}
	if err := s.setQuantity(ctx, userID, productID, qty); err != nil {
		return nil, err
	}
	return s.View(ctx, userID, "")
}

// SetQuantity replaces the line quantity. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) (*models.View, error) {
	if qty == 0 {
		return s.Remove(ctx, userID, productID)
	}
	if err := s.setQuantity(ctx, userID, productID, qty); err != nil {
		return nil, err
	}
	return s.View(ctx, userID, "")
}

func (s *Service) setQuantity(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) error {
	if err := models.ValidateQuantity(qty, false); err != nil {
		return err
	}
	p, err := s.activeProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return dErrors.Newf(dErrors.CodeConflict, "only %d of %s left in stock", p.Stock, p.Name)
	}
	if err := s.store.SetQuantity(ctx, userID, productID, qty); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update cart")
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, userID id.UserID, productID id.ProductID) (*models.View, error) {
	if err := s.store.Remove(ctx, userID, productID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update cart")
	}
	return s.View(ctx, userID, "")
}

func (s *Service) Clear(ctx context.Context, userID id.UserID) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear cart")
	}
	return nil
}

// View prices the cart in the display currency (base when empty).
// Lines whose product is gone or archived are dropped.
func (s *Service) View(ctx context.Context, userID id.UserID, display string) (*models.View, error) {
	display, err := s.converter.Normalize(display)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cart")
	}
	ids := make([]id.ProductID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &models.View{Items: make([]models.Line, 0, len(items)), Currency: display}
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok || !p.Active {
			s.logger.DebugContext(ctx, "dropping unavailable cart line", "product_id", item.ProductID.String())
			continue
		}
		unit, err := s.converter.Convert(p.Price, p.Currency, display)
		if err != nil {
			return nil, err
		}
		line := models.Line{
			ProductID: p.ID,
			Slug:      p.Slug,
			Name:      p.Name,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			LineTotal: unit * int64(item.Quantity),
			InStock:   p.InStock(item.Quantity),
		}
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		view.Items = append(view.Items, line)
		view.Count += item.Quantity
		view.Subtotal += line.LineTotal
	}
	return view, nil
}

func (s *Service) AddFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	if _, err := s.activeProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.store.AddFavorite(ctx, userID, productID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save favorite")
	}
	return nil
}

func (s *Service) RemoveFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	if err := s.store.RemoveFavorite(ctx, userID, productID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove favorite")
	}
	return nil
}

// Favorites lists the user's active favorite products.
func (s *Service) Favorites(ctx context.Context, userID id.UserID) ([]*catalogmodels.Product, error) {
	ids, err := s.store.Favorites(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load favorites")
	}
	products, err := s.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*catalogmodels.Product, 0, len(ids))
	for _, productID := range ids {
		if p, ok := products[productID]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) activeProduct(ctx context.Context, productID id.ProductID) (*catalogmodels.Product, error) {
	products, err := s.lookup(ctx, []id.ProductID{productID})
	if err != nil {
		return nil, err
	}
	p, ok := products[productID]
	if !ok || !p.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func (s *Service) lookup(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*catalogmodels.Product, error) {
	if len(ids) == 0 {
		return map[id.ProductID]*catalogmodels.Product{}, nil
	}
	return s.catalog.Lookup(ctx, ids)
}
