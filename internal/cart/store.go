package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/shopper"
)

// Line is one cart entry. The variant id doubles as the line reference since
// an owner holds at most one line per variant.
type Line struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the capability shared by the durable and the ephemeral cart.
// Add merges into an existing line; SetQuantity requires qty >= 1.
type Store interface {
	List(ctx context.Context, owner shopper.Owner) ([]Line, error)
	Get(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) (Line, bool, error)
	Add(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error)
	SetQuantity(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error)
	Remove(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) error
	Clear(ctx context.Context, owner shopper.Owner) error
}
