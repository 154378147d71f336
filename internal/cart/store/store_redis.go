package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/cart/models"
	id "storefront/pkg/domain"
)

const (
	cartKeyPrefix     = "cart:"
	favoriteKeyPrefix = "fav:"

	defaultCartTTL = 30 * 24 * time.Hour
)

// RedisStore keeps each cart in a hash (product ID -> quantity) and each
// favorites list in a set. Carts expire after a period of inactivity;
// favorites do not.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithCartTTL sets how long an untouched cart survives.
func WithCartTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultCartTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cartKey(userID id.UserID) string     { return cartKeyPrefix + userID.String() }
func favoriteKey(userID id.UserID) string { return favoriteKeyPrefix + userID.String() }

func (s *RedisStore) Items(ctx context.Context, userID id.UserID) ([]models.Item, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	items := make([]models.Item, 0, len(raw))
	for field, value := range raw {
		productID, err := id.ParseProductID(field)
		if err != nil {
			return nil, fmt.Errorf("cart field %q: %w", field, err)
		}
		qty, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("cart quantity for %s: %w", field, err)
		}
		items = append(items, models.Item{ProductID: productID, Quantity: qty})
	}
	sortItems(items)
	return items, nil
}

// SetQuantity writes the line and refreshes the cart TTL in one transaction.
func (s *RedisStore) SetQuantity(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}
	key := cartKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, productID.String(), qty)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	if err := s.client.HDel(ctx, cartKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID id.UserID) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *RedisStore) AddFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	if err := s.client.SAdd(ctx, favoriteKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveFavorite(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	if err := s.client.SRem(ctx, favoriteKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (s *RedisStore) Favorites(ctx context.Context, userID id.UserID) ([]id.ProductID, error) {
	members, err := s.client.SMembers(ctx, favoriteKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	out := make([]id.ProductID, 0, len(members))
	for _, m := range members {
		productID, err := id.ParseProductID(m)
		if err != nil {
			return nil, fmt.Errorf("favorite member %q: %w", m, err)
		}
		out = append(out, productID)
	}
	sortIDs(out)
	return out, nil
}
