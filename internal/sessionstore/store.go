package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	redisclient "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type hashStore interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HExists(ctx context.Context, key, field string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	HashTx(ctx context.Context, fn func(redisclient.HashPipe) error) error
	HSetExisting(ctx context.Context, key, field string, value any, ttl time.Duration, touch ...string) (bool, error)
}

type keyer interface {
	GuestCartKey(sessionID string) string
	GuestCartMetaKey(sessionID string) string
	GuestFavoritesKey(sessionID string) string
}

// Store keeps guest carts and favorites in Redis hashes. Every mutation slides
// the expiry window of the touched set forward.
type Store struct {
	hashes       hashStore
	keys         keyer
	cartTTL      time.Duration
	favoritesTTL time.Duration
	now          func() time.Time
}

// New builds a session store over the shared Redis client.
func New(client *redisclient.Client, cfg config.SessionConfig) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.CartTTL <= 0 || cfg.FavoritesTTL <= 0 {
		return nil, fmt.Errorf("guest cart and favorites ttl must be positive")
	}
	return &Store{
		hashes:       client,
		keys:         client,
		cartTTL:      cfg.CartTTL,
		favoritesTTL: cfg.FavoritesTTL,
		now:          time.Now,
	}, nil
}

// AddCartItem increments the quantity held for variantID and returns the
// resulting line. The increment, the first-added stamp and both expiries land
// in one transaction.
func (s *Store) AddCartItem(ctx context.Context, sessionID string, variantID uuid.UUID, qty int) (CartLine, error) {
	if err := validateSession(sessionID); err != nil {
		return CartLine{}, err
	}
	if variantID == uuid.Nil || qty <= 0 {
		return CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id and positive quantity are required")
	}

	cartKey, metaKey := s.keys.GuestCartKey(sessionID), s.keys.GuestCartMetaKey(sessionID)
	field := variantID.String()
	now := s.now()

	var total *redislib.IntCmd
	var addedAt *redislib.StringCmd
	err := s.hashes.HashTx(ctx, func(pipe redisclient.HashPipe) error {
		total = pipe.HIncrBy(ctx, cartKey, field, int64(qty))
		pipe.HSetNX(ctx, metaKey, field, formatTimestamp(now))
		addedAt = pipe.HGet(ctx, metaKey, field)
		s.slideCart(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return CartLine{}, unavailable(err, "add guest cart item")
	}

	if total.Val() <= 0 {
		// a corrupted field went negative; never leave it behind
		if _, err := s.removeCartItem(ctx, sessionID, field); err != nil {
			return CartLine{}, err
		}
		return CartLine{}, pkgerrors.New(pkgerrors.CodeInternal, "guest cart entry was corrupt and has been removed")
	}

	line := CartLine{VariantID: variantID, Quantity: int(total.Val()), AddedAt: now.UTC()}
	if stamp, perr := parseTimestamp(addedAt.Val()); perr == nil {
		line.AddedAt = stamp
	}
	return line, nil
}

// SetCartItemQuantity overwrites the quantity of a line the cart already
// holds and reports false when it holds none. It never creates a line.
// qty <= 0 removes the line.
func (s *Store) SetCartItemQuantity(ctx context.Context, sessionID string, variantID uuid.UUID, qty int) (bool, error) {
	if err := validateSession(sessionID); err != nil {
		return false, err
	}
	if variantID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return s.removeCartItem(ctx, sessionID, variantID.String())
	}

	updated, err := s.hashes.HSetExisting(ctx, s.keys.GuestCartKey(sessionID), variantID.String(), qty,
		s.cartTTL, s.keys.GuestCartMetaKey(sessionID))
	if err != nil {
		return false, unavailable(err, "update guest cart")
	}
	return updated, nil
}

// RemoveCartItem deletes the line for variantID, if any.
func (s *Store) RemoveCartItem(ctx context.Context, sessionID string, variantID uuid.UUID) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	_, err := s.removeCartItem(ctx, sessionID, variantID.String())
	return err
}

func (s *Store) removeCartItem(ctx context.Context, sessionID, field string) (bool, error) {
	var removed *redislib.IntCmd
	err := s.hashes.HashTx(ctx, func(pipe redisclient.HashPipe) error {
		removed = pipe.HDel(ctx, s.keys.GuestCartKey(sessionID), field)
		pipe.HDel(ctx, s.keys.GuestCartMetaKey(sessionID), field)
		s.slideCart(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return false, unavailable(err, "remove guest cart item")
	}
	return removed.Val() > 0, nil
}

// GetCart returns the guest cart ordered by when each line was first added.
func (s *Store) GetCart(ctx context.Context, sessionID string) ([]CartLine, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	quantities, err := s.hashes.HGetAll(ctx, s.keys.GuestCartKey(sessionID))
	if err != nil {
		return nil, unavailable(err, "read guest cart")
	}
	if len(quantities) == 0 {
		return []CartLine{}, nil
	}
	meta, err := s.hashes.HGetAll(ctx, s.keys.GuestCartMetaKey(sessionID))
	if err != nil {
		return nil, unavailable(err, "read guest cart metadata")
	}

	lines := make([]CartLine, 0, len(quantities))
	for field, rawQty := range quantities {
		line, err := parseCartLine(field, rawQty, meta[field])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "guest cart is malformed")
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].VariantID.String() < lines[j].VariantID.String()
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

// GetCartItem returns the line for variantID. The bool is false when absent.
func (s *Store) GetCartItem(ctx context.Context, sessionID string, variantID uuid.UUID) (CartLine, bool, error) {
	if err := validateSession(sessionID); err != nil {
		return CartLine{}, false, err
	}
	field := variantID.String()
	rawQty, err := s.hashes.HGet(ctx, s.keys.GuestCartKey(sessionID), field)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return CartLine{}, false, nil
		}
		return CartLine{}, false, unavailable(err, "read guest cart item")
	}
	rawAddedAt, err := s.hashes.HGet(ctx, s.keys.GuestCartMetaKey(sessionID), field)
	if err != nil && !errors.Is(err, redislib.Nil) {
		return CartLine{}, false, unavailable(err, "read guest cart metadata")
	}
	line, err := parseCartLine(field, rawQty, rawAddedAt)
	if err != nil {
		return CartLine{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "guest cart is malformed")
	}
	return line, true, nil
}

// ClearCart drops the whole guest cart.
func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	if err := s.hashes.Del(ctx, s.keys.GuestCartKey(sessionID), s.keys.GuestCartMetaKey(sessionID)); err != nil {
		return unavailable(err, "clear guest cart")
	}
	return nil
}

// AddFavorite records productID. The bool is false when it was already a favorite.
func (s *Store) AddFavorite(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error) {
	if err := validateSession(sessionID); err != nil {
		return false, err
	}
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	key := s.keys.GuestFavoritesKey(sessionID)
	var created *redislib.BoolCmd
	err := s.hashes.HashTx(ctx, func(pipe redisclient.HashPipe) error {
		created = pipe.HSetNX(ctx, key, productID.String(), formatTimestamp(s.now()))
		pipe.Expire(ctx, key, s.favoritesTTL)
		return nil
	})
	if err != nil {
		return false, unavailable(err, "add guest favorite")
	}
	return created.Val(), nil
}

// GetFavorites returns the guest favorites, newest first.
func (s *Store) GetFavorites(ctx context.Context, sessionID string) ([]FavoriteEntry, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	raw, err := s.hashes.HGetAll(ctx, s.keys.GuestFavoritesKey(sessionID))
	if err != nil {
		return nil, unavailable(err, "read guest favorites")
	}
	entries := make([]FavoriteEntry, 0, len(raw))
	for field, addedAt := range raw {
		entry, err := parseFavorite(field, addedAt)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "guest favorites are malformed")
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].ProductID.String() > entries[j].ProductID.String()
		}
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})
	return entries, nil
}

// RemoveFavorite deletes productID from the guest favorites.
func (s *Store) RemoveFavorite(ctx context.Context, sessionID string, productID uuid.UUID) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	key := s.keys.GuestFavoritesKey(sessionID)
	err := s.hashes.HashTx(ctx, func(pipe redisclient.HashPipe) error {
		pipe.HDel(ctx, key, productID.String())
		pipe.Expire(ctx, key, s.favoritesTTL)
		return nil
	})
	if err != nil {
		return unavailable(err, "remove guest favorite")
	}
	return nil
}

// IsFavorite reports whether productID is in the guest favorites.
func (s *Store) IsFavorite(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error) {
	if err := validateSession(sessionID); err != nil {
		return false, err
	}
	ok, err := s.hashes.HExists(ctx, s.keys.GuestFavoritesKey(sessionID), productID.String())
	if err != nil {
		return false, unavailable(err, "read guest favorite")
	}
	return ok, nil
}

// ClearFavorites drops every guest favorite.
func (s *Store) ClearFavorites(ctx context.Context, sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	if err := s.hashes.Del(ctx, s.keys.GuestFavoritesKey(sessionID)); err != nil {
		return unavailable(err, "clear guest favorites")
	}
	return nil
}

// Snapshot reads the cart and favorites together.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	favorites, err := s.GetFavorites(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Cart: cart, Favorites: favorites}, nil
}

// ClearAll drops the cart and favorites, attempting both even if one fails.
func (s *Store) ClearAll(ctx context.Context, sessionID string) error {
	return multierr.Combine(
		s.ClearCart(ctx, sessionID),
		s.ClearFavorites(ctx, sessionID),
	)
}

// slideCart queues the expiry refresh for both cart hashes.
func (s *Store) slideCart(ctx context.Context, pipe redisclient.HashPipe, sessionID string) {
	pipe.Expire(ctx, s.keys.GuestCartKey(sessionID), s.cartTTL)
	pipe.Expire(ctx, s.keys.GuestCartMetaKey(sessionID), s.cartTTL)
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func unavailable(err error, action string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
