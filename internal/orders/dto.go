package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// StatusPair is the (payment, fulfillment) state of an order.
type StatusPair struct {
	Payment     enums.PaymentStatus
	Fulfillment enums.FulfillmentStatus
}

// CheckoutInput carries the customer details supplied at checkout. Users may
// omit contact fields; they default to the account.
type CheckoutInput struct {
	Email           string                 `json:"email,omitempty" validate:"omitempty,email"`
	Name            string                 `json:"name,omitempty" validate:"omitempty,max=255"`
	Phone           *string                `json:"phone,omitempty" validate:"omitempty,max=32"`
	AddressID       *uuid.UUID             `json:"address_id,omitempty"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
	Notes           *string                `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// LineItem is a frozen copy of a cart line.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Size        *string         `json:"size,omitempty"`
	Color       *string         `json:"color,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	ImageURL    *string         `json:"image_url,omitempty"`
}

// OrderDetail is the full order view.
type OrderDetail struct {
	ID                uuid.UUID               `json:"id"`
	OrderNumber       string                  `json:"order_number"`
	CustomerEmail     string                  `json:"customer_email"`
	CustomerName      string                  `json:"customer_name"`
	CustomerPhone     *string                 `json:"customer_phone,omitempty"`
	ShippingAddress   types.ShippingAddress   `json:"shipping_address"`
	Totals            Totals                  `json:"totals"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	StockReserved     bool                    `json:"stock_reserved"`
	Notes             *string                 `json:"notes,omitempty"`
	LineItems         []LineItem              `json:"line_items"`
	PaidAt            *time.Time              `json:"paid_at,omitempty"`
	FulfilledAt       *time.Time              `json:"fulfilled_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

// OrderSummary is the list view of an order.
type OrderSummary struct {
	ID                uuid.UUID               `json:"id"`
	OrderNumber       string                  `json:"order_number"`
	Total             decimal.Decimal         `json:"total"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	CreatedAt         time.Time               `json:"created_at"`
}

// OrderList is a cursor page of order summaries.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func summaryFromModel(o models.Order) OrderSummary {
	return OrderSummary{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		Total:             o.TotalAmount,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		CreatedAt:         o.CreatedAt,
	}
}

func detailFromModel(o *models.Order) *OrderDetail {
	if o == nil {
		return nil
	}
	items := make([]LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, LineItem{
			ID:          li.ID,
			ProductID:   li.ProductID,
			VariantID:   li.VariantID,
			ProductName: li.ProductName,
			SKU:         li.SKU,
			Size:        li.Size,
			Color:       li.Color,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			LineTotal:   li.LineTotal,
			ImageURL:    li.ImageURL,
		})
	}
	return &OrderDetail{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: o.ShippingAddress,
		Totals: Totals{
			Subtotal: o.SubtotalAmount,
			Shipping: o.ShippingAmount,
			Tax:      o.TaxAmount,
			Discount: o.DiscountAmount,
			Total:    o.TotalAmount,
		},
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		StockReserved:     o.StockReserved,
		Notes:             o.Notes,
		LineItems:         items,
		PaidAt:            o.PaidAt,
		FulfilledAt:       o.FulfilledAt,
		CancelledAt:       o.CancelledAt,
		CreatedAt:         o.CreatedAt,
	}
}
