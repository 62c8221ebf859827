package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable checkout snapshot. Only the status axes and their
// timestamps change after creation.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string                  `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            *uuid.UUID              `gorm:"column:user_id;type:uuid;index:orders_user_id_idx"`
	SessionID         *string                 `gorm:"column:session_id"`
	CustomerEmail     string                  `gorm:"column:customer_email;not null"`
	CustomerName      string                  `gorm:"column:customer_name;not null"`
	CustomerPhone     *string                 `gorm:"column:customer_phone"`
	ShippingAddress   types.ShippingAddress   `gorm:"column:shipping_address;type:jsonb;not null"`
	SubtotalAmount    decimal.Decimal         `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	ShippingAmount    decimal.Decimal         `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	TaxAmount         decimal.Decimal         `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount    decimal.Decimal         `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount       decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;not null;default:'pending'"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;not null;default:'unfulfilled'"`
	StockReserved     bool                    `gorm:"column:stock_reserved;not null;default:false"`
	Notes             *string                 `gorm:"column:notes"`
	PaidAt            *time.Time              `gorm:"column:paid_at"`
	FulfilledAt       *time.Time              `gorm:"column:fulfilled_at"`
	CancelledAt       *time.Time              `gorm:"column:cancelled_at"`
	LineItems         []OrderLineItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
