package sessionstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CartLine is one guest cart entry. There is at most one line per variant.
type CartLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// FavoriteEntry is one guest favorite.
type FavoriteEntry struct {
	ProductID uuid.UUID `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// Snapshot is the full ephemeral state of a guest session.
type Snapshot struct {
	Cart      []CartLine      `json:"cart"`
	Favorites []FavoriteEntry `json:"favorites"`
}

// IsEmpty reports whether the snapshot carries nothing to transfer.
func (s Snapshot) IsEmpty() bool {
	return len(s.Cart) == 0 && len(s.Favorites) == 0
}

func parseCartLine(field, rawQty, rawAddedAt string) (CartLine, error) {
	variantID, err := uuid.Parse(field)
	if err != nil {
		return CartLine{}, fmt.Errorf("cart entry %q: invalid variant id: %w", field, err)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(rawQty))
	if err != nil {
		return CartLine{}, fmt.Errorf("cart entry %q: invalid quantity %q", field, rawQty)
	}
	if qty <= 0 {
		return CartLine{}, fmt.Errorf("cart entry %q: non-positive quantity %d", field, qty)
	}
	line := CartLine{VariantID: variantID, Quantity: qty}
	if rawAddedAt != "" {
		addedAt, err := parseTimestamp(rawAddedAt)
		if err != nil {
			return CartLine{}, fmt.Errorf("cart entry %q: %w", field, err)
		}
		line.AddedAt = addedAt
	}
	return line, nil
}

func parseFavorite(field, rawAddedAt string) (FavoriteEntry, error) {
	productID, err := uuid.Parse(field)
	if err != nil {
		return FavoriteEntry{}, fmt.Errorf("favorite entry %q: invalid product id: %w", field, err)
	}
	addedAt, err := parseTimestamp(rawAddedAt)
	if err != nil {
		return FavoriteEntry{}, fmt.Errorf("favorite entry %q: %w", field, err)
	}
	return FavoriteEntry{ProductID: productID, AddedAt: addedAt}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return t, nil
}
