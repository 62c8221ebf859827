package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func seedOrder(t *testing.T, repo Repository) *models.Order {
	t.Helper()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	variantID := uuid.New()
	order := &models.Order{
		OrderNumber:       "SF-20260501-ABCDEF",
		CustomerEmail:     "sam@example.com",
		CustomerName:      "Sam",
		ShippingAddress:   types.ShippingAddress{FullName: "Sam", Line1: "1 Main", City: "Portland", State: "OR", PostalCode: "97201", Country: "US"},
		SubtotalAmount:    decimal.RequireFromString("10.00"),
		ShippingAmount:    decimal.RequireFromString("5.99"),
		TaxAmount:         decimal.Zero,
		DiscountAmount:    decimal.Zero,
		TotalAmount:       decimal.RequireFromString("15.99"),
		PaymentStatus:     enums.PaymentStatusPending,
		FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NoError(t, repo.CreateOrderLineItems(ctx, []models.OrderLineItem{{
		OrderID:     order.ID,
		VariantID:   &variantID,
		ProductName: "Tee",
		SKU:         "TEE-1",
		UnitPrice:   decimal.RequireFromString("10.00"),
		Quantity:    1,
		LineTotal:   decimal.RequireFromString("10.00"),
		CreatedAt:   now,
	}}))
	return order
}

func TestRepositoryRoundTripsOrder(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	order := seedOrder(t, repo)

	found, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "SF-20260501-ABCDEF", found.OrderNumber)
	require.Equal(t, "Portland", found.ShippingAddress.City)
	require.True(t, found.TotalAmount.Equal(decimal.RequireFromString("15.99")))
	require.Len(t, found.LineItems, 1)
	require.Equal(t, "TEE-1", found.LineItems[0].SKU)
}

func TestRepositoryTransitionRequiresExpectedStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	order := seedOrder(t, repo)
	pending := StatusPair{Payment: enums.PaymentStatusPending, Fulfillment: enums.FulfillmentStatusUnfulfilled}

	ok, err := repo.TransitionOrder(ctx, order.ID, pending, map[string]any{"payment_status": enums.PaymentStatusPaid})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TransitionOrder(ctx, order.ID, pending, map[string]any{"payment_status": enums.PaymentStatusFailed})
	require.NoError(t, err)
	require.False(t, ok, "a stale status pair must not overwrite the newer state")

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, found.PaymentStatus)
}
