// Package transfer folds a guest session's cart and favorites into a user's
// durable records when the guest signs in.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/sessionstore"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogLookup interface {
	Variants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.VariantView, error)
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.ProductSummary, error)
}

type guestState interface {
	Snapshot(ctx context.Context, sessionID string) (sessionstore.Snapshot, error)
	ClearAll(ctx context.Context, sessionID string) error
}

// Result summarises what a transfer moved.
type Result struct {
	CartLines int  `json:"cart_lines"`
	Favorites int  `json:"favorites"`
	Skipped   int  `json:"skipped"`
	Noop      bool `json:"noop"`
	// Cleared is false when the durable commit succeeded but the guest copy
	// could not be removed; a retry would double the merged quantities.
	Cleared bool `json:"cleared"`
}

// Service merges guest state into a user account.
type Service interface {
	Transfer(ctx context.Context, sessionID string, userID uuid.UUID) (Result, error)
}

// ServiceParams groups dependencies for the transfer service.
type ServiceParams struct {
	Tx        txRunner
	Guests    guestState
	Catalog   catalogLookup
	Carts     *cart.Repository
	Favorites *favorites.Repository
	Metrics   *metrics.Recorder
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	guests    guestState
	catalog   catalogLookup
	carts     *cart.Repository
	favorites *favorites.Repository
	metrics   *metrics.Recorder
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the transfer service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Guests == nil {
		return nil, fmt.Errorf("guest session store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Favorites == nil {
		return nil, fmt.Errorf("favorites repository required")
	}
	return &service{
		tx:        params.Tx,
		guests:    params.Guests,
		catalog:   params.Catalog,
		carts:     params.Carts,
		favorites: params.Favorites,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Transfer adds every guest cart quantity onto the user's cart and unions the
// favorites inside one transaction. The guest copy is cleared only after the
// commit, so a failed merge can be retried on the next sign-in without loss.
func (s *service) Transfer(ctx context.Context, sessionID string, userID uuid.UUID) (Result, error) {
	started := s.now()
	if sessionID == "" || userID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "session id and user id are required")
	}

	snapshot, err := s.guests.Snapshot(ctx, sessionID)
	if err != nil {
		s.metrics.Transfer(metrics.ResultError, 0, s.now().Sub(started))
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "read guest session")
	}
	if snapshot.IsEmpty() {
		s.metrics.Transfer(metrics.ResultNoop, 0, s.now().Sub(started))
		return Result{Noop: true, Cleared: true}, nil
	}

	lines, favs, skipped, err := s.dropVanished(ctx, snapshot)
	if err != nil {
		s.metrics.Transfer(metrics.ResultError, 0, s.now().Sub(started))
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "resolve guest session items")
	}

	result := Result{Skipped: skipped}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		for _, line := range lines {
			if _, err := carts.AddItem(ctx, userID, line.VariantID, line.Quantity); err != nil {
				return fmt.Errorf("merge cart line %s: %w", line.VariantID, err)
			}
			result.CartLines++
		}
		favRepo := s.favorites.WithTx(tx)
		for _, entry := range favs {
			created, err := favRepo.AddItemAt(ctx, userID, entry.ProductID, entry.AddedAt)
			if err != nil {
				return fmt.Errorf("merge favorite %s: %w", entry.ProductID, err)
			}
			if created {
				result.Favorites++
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.Transfer(metrics.ResultError, 0, s.now().Sub(started))
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "merge guest session").
			WithDetails(map[string]any{"session_id": sessionID})
	}

	if err := s.guests.ClearAll(ctx, sessionID); err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"session_id": sessionID,
				"user_id":    userID.String(),
			})
			s.logg.Error(logCtx, "guest session merged but not cleared", err)
		}
	} else {
		result.Cleared = true
	}

	s.metrics.Transfer(metrics.ResultOK, result.CartLines+result.Favorites, s.now().Sub(started))
	return result, nil
}

// dropVanished removes lines and favorites whose variant or product has been
// deleted since the guest added them; they could never be merged.
func (s *service) dropVanished(ctx context.Context, snapshot sessionstore.Snapshot) ([]sessionstore.CartLine, []sessionstore.FavoriteEntry, int, error) {
	variantIDs := make([]uuid.UUID, 0, len(snapshot.Cart))
	for _, line := range snapshot.Cart {
		variantIDs = append(variantIDs, line.VariantID)
	}
	productIDs := make([]uuid.UUID, 0, len(snapshot.Favorites))
	for _, entry := range snapshot.Favorites {
		productIDs = append(productIDs, entry.ProductID)
	}

	variants, err := s.catalog.Variants(ctx, variantIDs)
	if err != nil {
		return nil, nil, 0, err
	}
	products, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		return nil, nil, 0, err
	}

	skipped := 0
	lines := make([]sessionstore.CartLine, 0, len(snapshot.Cart))
	for _, line := range snapshot.Cart {
		if _, ok := variants[line.VariantID]; !ok {
			skipped++
			continue
		}
		lines = append(lines, line)
	}
	favs := make([]sessionstore.FavoriteEntry, 0, len(snapshot.Favorites))
	for _, entry := range snapshot.Favorites {
		if _, ok := products[entry.ProductID]; !ok {
			skipped++
			continue
		}
		favs = append(favs, entry)
	}
	return lines, favs, skipped, nil
}
