package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantView joins a variant with the product fields needed to price and
// display a cart line.
type VariantView struct {
	VariantID        uuid.UUID
	ProductID        uuid.UUID
	ProductName      string
	ProductSlug      string
	SKU              string
	Size             *string
	Color            *string
	BasePrice        decimal.Decimal
	AdditionalPrice  decimal.Decimal
	StockQuantity    int
	ReservedQuantity int
	ProductActive    bool
	VariantActive    bool
	ImageURL         *string
}

// UnitPrice is base_price + additional_price, unrounded.
func (v VariantView) UnitPrice() decimal.Decimal {
	return v.BasePrice.Add(v.AdditionalPrice)
}

// Available returns stock not yet held by a reservation.
func (v VariantView) Available() int {
	if v.ReservedQuantity >= v.StockQuantity {
		return 0
	}
	return v.StockQuantity - v.ReservedQuantity
}

// Purchasable reports whether both the product and the variant are active.
func (v VariantView) Purchasable() bool {
	return v.ProductActive && v.VariantActive
}

// ProductSummary is the card-level projection of a product.
type ProductSummary struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	BasePrice decimal.Decimal `json:"base_price"`
	IsActive  bool            `json:"is_active"`
	ImageURL  *string         `json:"image_url,omitempty"`
}
