package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestVariantJoinsProductAndPrimaryImage(t *testing.T) {
	conn := dbtest.Open(t)
	product, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{
		Name:            "Wool Scarf",
		BasePrice:       "20.00",
		AdditionalPrice: "2.50",
		Size:            "M",
		Stock:           7,
		Reserved:        2,
		ImageURL:        "https://cdn.example.com/scarf.jpg",
	})
	require.NoError(t, conn.Create(&models.ProductImage{
		ID:        uuid.New(),
		ProductID: product.ID,
		URL:       "https://cdn.example.com/scarf-back.jpg",
		Position:  1,
	}).Error)

	repo := NewRepository(conn)
	view, err := repo.Variant(context.Background(), variant.ID)
	require.NoError(t, err)

	assert.Equal(t, product.ID, view.ProductID)
	assert.Equal(t, "Wool Scarf", view.ProductName)
	assert.Equal(t, variant.SKU, view.SKU)
	require.NotNil(t, view.Size)
	assert.Equal(t, "M", *view.Size)
	assert.Nil(t, view.Color)
	assert.True(t, view.UnitPrice().Equal(decimal.RequireFromString("22.50")))
	assert.Equal(t, 5, view.Available())
	assert.True(t, view.Purchasable())
	require.NotNil(t, view.ImageURL)
	assert.Equal(t, "https://cdn.example.com/scarf.jpg", *view.ImageURL)
}

func TestVariantNotFound(t *testing.T) {
	conn := dbtest.Open(t)

	_, err := NewRepository(conn).Variant(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestVariantsReportsInactiveFlags(t *testing.T) {
	conn := dbtest.Open(t)
	_, inactiveProduct := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{Stock: 1, ProductInactive: true})
	_, inactiveVariant := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{Stock: 1, VariantInactive: true})
	missing := uuid.New()

	views, err := NewRepository(conn).Variants(context.Background(), []uuid.UUID{
		inactiveProduct.ID, inactiveVariant.ID, missing, inactiveProduct.ID,
	})
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.False(t, views[inactiveProduct.ID].ProductActive)
	assert.True(t, views[inactiveProduct.ID].VariantActive)
	assert.True(t, views[inactiveVariant.ID].ProductActive)
	assert.False(t, views[inactiveVariant.ID].VariantActive)
	_, ok := views[missing]
	assert.False(t, ok)
}

func TestProductsSummaries(t *testing.T) {
	conn := dbtest.Open(t)
	product, _ := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{Name: "Canvas Tote", BasePrice: "15.00"})

	repo := NewRepository(conn)
	summary, err := repo.Product(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Canvas Tote", summary.Name)
	assert.True(t, summary.IsActive)
	assert.True(t, summary.BasePrice.Equal(decimal.RequireFromString("15.00")))
	assert.Nil(t, summary.ImageURL)

	empty, err := repo.Products(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = repo.Product(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestVariantRecordRejectsMissingFields(t *testing.T) {
	base := variantRecord{
		VariantID: uuid.New(),
		ProductID: uuid.New(),
	}
	base.ProductName.String, base.ProductName.Valid = "Shirt", true
	base.SKU.String, base.SKU.Valid = "SKU-1", true
	base.BasePrice = decimal.NewNullDecimal(decimal.RequireFromString("10"))

	_, err := base.toView()
	require.NoError(t, err)

	noName := base
	noName.ProductName.Valid = false
	_, err = noName.toView()
	assert.Error(t, err)

	noPrice := base
	noPrice.BasePrice.Valid = false
	_, err = noPrice.toView()
	assert.Error(t, err)

	negative := base
	negative.StockQuantity = -1
	_, err = negative.toView()
	assert.Error(t, err)
}
