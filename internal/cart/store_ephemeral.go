package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/sessionstore"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type guestCart interface {
	AddCartItem(ctx context.Context, sessionID string, variantID uuid.UUID, qty int) (sessionstore.CartLine, error)
	SetCartItemQuantity(ctx context.Context, sessionID string, variantID uuid.UUID, qty int) (bool, error)
	RemoveCartItem(ctx context.Context, sessionID string, variantID uuid.UUID) error
	GetCart(ctx context.Context, sessionID string) ([]sessionstore.CartLine, error)
	GetCartItem(ctx context.Context, sessionID string, variantID uuid.UUID) (sessionstore.CartLine, bool, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// EphemeralStore adapts the guest session store to the Store capability.
type EphemeralStore struct {
	sessions guestCart
}

// NewEphemeralStore wraps the guest session store.
func NewEphemeralStore(sessions guestCart) *EphemeralStore {
	return &EphemeralStore{sessions: sessions}
}

func (s *EphemeralStore) List(ctx context.Context, owner shopper.Owner) ([]Line, error) {
	if err := requireSession(owner); err != nil {
		return nil, err
	}
	entries, err := s.sessions.GetCart(ctx, owner.SessionID)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, lineFromSession(entry))
	}
	return lines, nil
}

func (s *EphemeralStore) Get(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) (Line, bool, error) {
	if err := requireSession(owner); err != nil {
		return Line{}, false, err
	}
	entry, ok, err := s.sessions.GetCartItem(ctx, owner.SessionID, variantID)
	if err != nil || !ok {
		return Line{}, ok, err
	}
	return lineFromSession(entry), true, nil
}

func (s *EphemeralStore) Add(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error) {
	if err := requireSession(owner); err != nil {
		return Line{}, err
	}
	entry, err := s.sessions.AddCartItem(ctx, owner.SessionID, variantID, qty)
	if err != nil {
		return Line{}, err
	}
	return lineFromSession(entry), nil
}

func (s *EphemeralStore) SetQuantity(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error) {
	if err := requireSession(owner); err != nil {
		return Line{}, err
	}
	if qty < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	updated, err := s.sessions.SetCartItemQuantity(ctx, owner.SessionID, variantID, qty)
	if err != nil {
		return Line{}, err
	}
	if !updated {
		return Line{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	line, ok, err := s.Get(ctx, owner, variantID)
	if err == nil && !ok {
		// removed between the update and the read
		return Line{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return line, err
}

func (s *EphemeralStore) Remove(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) error {
	if err := requireSession(owner); err != nil {
		return err
	}
	return s.sessions.RemoveCartItem(ctx, owner.SessionID, variantID)
}

func (s *EphemeralStore) Clear(ctx context.Context, owner shopper.Owner) error {
	if err := requireSession(owner); err != nil {
		return err
	}
	return s.sessions.ClearCart(ctx, owner.SessionID)
}

func lineFromSession(entry sessionstore.CartLine) Line {
	return Line{
		VariantID: entry.VariantID,
		Quantity:  entry.Quantity,
		AddedAt:   entry.AddedAt,
		UpdatedAt: entry.AddedAt,
	}
}

func requireSession(owner shopper.Owner) error {
	if owner.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest session id is required")
	}
	return nil
}
