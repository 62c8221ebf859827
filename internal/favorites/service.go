package favorites

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/sessionstore"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type productLoader interface {
	Product(ctx context.Context, id uuid.UUID) (catalog.ProductSummary, error)
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.ProductSummary, error)
}

type guestFavorites interface {
	AddFavorite(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error)
	GetFavorites(ctx context.Context, sessionID string) ([]sessionstore.FavoriteEntry, error)
	RemoveFavorite(ctx context.Context, sessionID string, productID uuid.UUID) error
	IsFavorite(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error)
}

// Service manages favorites for users (durable) and guests (session store).
type Service interface {
	Add(ctx context.Context, owner shopper.Owner, productID uuid.UUID) (bool, error)
	Remove(ctx context.Context, owner shopper.Owner, productID uuid.UUID) error
	IsFavorite(ctx context.Context, owner shopper.Owner, productID uuid.UUID) (bool, error)
	List(ctx context.Context, owner shopper.Owner, cursor string, limit int) (Page, error)
}

// ServiceParams groups dependencies for the favorites service.
type ServiceParams struct {
	Repo     *Repository
	Guests   guestFavorites
	Products productLoader
}

type service struct {
	repo     *Repository
	guests   guestFavorites
	products productLoader
}

// NewService builds a favorites service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("favorites repo is required")
	}
	if params.Guests == nil {
		return nil, fmt.Errorf("guest favorites store is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	return &service{repo: params.Repo, guests: params.Guests, products: params.Products}, nil
}

// Add ensures the product exists and is active, then records it. Adding twice is a no-op.
func (s *service) Add(ctx context.Context, owner shopper.Owner, productID uuid.UUID) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return false, err
	}
	if !product.IsActive {
		return false, pkgerrors.New(pkgerrors.CodeItemUnavailable, "product is no longer available")
	}

	if !owner.IsAuthenticated() {
		return s.guests.AddFavorite(ctx, owner.SessionID, productID)
	}
	created, err := s.repo.AddItem(ctx, owner.UserID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add favorite")
	}
	return created, nil
}

// Remove drops the favorite regardless of prior state.
func (s *service) Remove(ctx context.Context, owner shopper.Owner, productID uuid.UUID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if !owner.IsAuthenticated() {
		return s.guests.RemoveFavorite(ctx, owner.SessionID, productID)
	}
	if err := s.repo.RemoveItem(ctx, owner.UserID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	return nil
}

func (s *service) IsFavorite(ctx context.Context, owner shopper.Owner, productID uuid.UUID) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}
	if !owner.IsAuthenticated() {
		return s.guests.IsFavorite(ctx, owner.SessionID, productID)
	}
	ok, err := s.repo.Exists(ctx, owner.UserID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load favorite")
	}
	return ok, nil
}

// List returns favorites newest first. Guest favorites whose product has been
// deleted are skipped; guests page through the rest with the same cursor as
// signed-in shoppers.
func (s *service) List(ctx context.Context, owner shopper.Owner, cursor string, limit int) (Page, error) {
	if err := owner.Validate(); err != nil {
		return Page{}, err
	}
	after, err := pagination.ParseCursor(cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if owner.IsAuthenticated() {
		page, err := s.repo.ListItems(ctx, owner.UserID, cursor, limit)
		if err != nil {
			return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
		}
		return page, nil
	}

	entries, err := s.guests.GetFavorites(ctx, owner.SessionID)
	if err != nil {
		return Page{}, err
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ProductID)
	}
	products, err := s.products.Products(ctx, ids)
	if err != nil {
		return Page{}, err
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		product, ok := products[entry.ProductID]
		if !ok {
			continue
		}
		items = append(items, Item{Product: product, AddedAt: entry.AddedAt})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.After(items[j].AddedAt)
		}
		return bytes.Compare(items[i].Product.ID[:], items[j].Product.ID[:]) > 0
	})
	total := len(items)

	remaining := make([]Item, 0, len(items))
	for _, item := range items {
		if after.Admits(item.AddedAt, item.Product.ID) {
			remaining = append(remaining, item)
		}
	}
	rows, next := pagination.Trim(remaining, limit, func(item Item) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.AddedAt, ID: item.Product.ID}
	})
	return Page{Items: rows, Total: total, NextCursor: next}, nil
}
