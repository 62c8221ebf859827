package favorites

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
)

// Item is a favorited product with the time it was liked.
type Item struct {
	Product catalog.ProductSummary `json:"product"`
	AddedAt time.Time              `json:"added_at"`
}

// Page is a newest-first page of favorites.
type Page struct {
	Items      []Item `json:"items"`
	Total      int    `json:"total"`
	NextCursor string `json:"next_cursor,omitempty"`
}
