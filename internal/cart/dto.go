package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LineView is a cart line joined with live catalog data.
type LineView struct {
	VariantID         uuid.UUID              `json:"variant_id"`
	ProductID         uuid.UUID              `json:"product_id,omitempty"`
	ProductName       string                 `json:"product_name,omitempty"`
	SKU               string                 `json:"sku,omitempty"`
	Size              *string                `json:"size,omitempty"`
	Color             *string                `json:"color,omitempty"`
	ImageURL          *string                `json:"image_url,omitempty"`
	Quantity          int                    `json:"quantity"`
	UnitPrice         decimal.Decimal        `json:"unit_price"`
	LineTotal         decimal.Decimal        `json:"line_total"`
	Available         bool                   `json:"available"`
	AvailableQuantity int                    `json:"available_quantity"`
	Issue             *enums.CartIssueReason `json:"issue,omitempty"`
	AddedAt           time.Time              `json:"added_at"`
}

// CartView is the priced cart. Subtotal is rounded to cents once, after summing
// the unrounded line totals.
type CartView struct {
	Items     []LineView      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
	HasIssues bool            `json:"has_issues"`
}

// Issue is a reason a cart cannot be checked out.
type Issue struct {
	VariantID   uuid.UUID             `json:"variant_id"`
	ProductName string                `json:"product_name,omitempty"`
	Reason      enums.CartIssueReason `json:"reason"`
	Requested   int                   `json:"requested"`
	Available   int                   `json:"available"`
}

// ValidationResult is the checkout readiness of a cart.
type ValidationResult struct {
	IsValid bool    `json:"is_valid"`
	Issues  []Issue `json:"issues"`
}
