package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is a purchasable SKU and the stock ledger row for it.
// reserved_quantity never exceeds stock_quantity.
type ProductVariant struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:product_variants_product_id_idx"`
	SKU              string          `gorm:"column:sku;not null;uniqueIndex"`
	Size             *string         `gorm:"column:size"`
	Color            *string         `gorm:"column:color"`
	AdditionalPrice  decimal.Decimal `gorm:"column:additional_price;type:numeric(12,2);not null;default:0"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0"`
	ReservedQuantity int             `gorm:"column:reserved_quantity;not null;default:0"`
	IsActive         bool            `gorm:"column:is_active;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the unreserved stock.
func (v ProductVariant) Available() int {
	if v.ReservedQuantity >= v.StockQuantity {
		return 0
	}
	return v.StockQuantity - v.ReservedQuantity
}
