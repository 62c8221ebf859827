// Package dbtest opens isolated SQLite databases carrying the storefront schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

// Open returns a fresh in-memory database. A single pooled connection keeps
// shared-cache table locks from surfacing as SQLITE_LOCKED in transactional tests.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.ApplySQLiteSchema(context.Background(), conn))
	return conn
}

// VariantSeed describes a product with one variant.
type VariantSeed struct {
	Name            string
	BasePrice       string
	AdditionalPrice string
	Size            string
	Color           string
	Stock           int
	Reserved        int
	ProductInactive bool
	VariantInactive bool
	ImageURL        string
}

// SeedVariant inserts a product plus variant and returns both.
func SeedVariant(t *testing.T, conn *gorm.DB, seed VariantSeed) (models.Product, models.ProductVariant) {
	t.Helper()

	if seed.Name == "" {
		seed.Name = "Linen Shirt"
	}
	if seed.BasePrice == "" {
		seed.BasePrice = "10.00"
	}
	if seed.AdditionalPrice == "" {
		seed.AdditionalPrice = "0"
	}

	product := models.Product{
		ID:        uuid.New(),
		Name:      seed.Name,
		Slug:      fmt.Sprintf("product-%s", uuid.NewString()),
		BasePrice: decimal.RequireFromString(seed.BasePrice),
		IsActive:  !seed.ProductInactive,
	}
	require.NoError(t, conn.Omit("Variants", "Images").Select("*").Create(&product).Error)

	variant := models.ProductVariant{
		ID:               uuid.New(),
		ProductID:        product.ID,
		SKU:              fmt.Sprintf("SKU-%s", uuid.NewString()[:8]),
		AdditionalPrice:  decimal.RequireFromString(seed.AdditionalPrice),
		StockQuantity:    seed.Stock,
		ReservedQuantity: seed.Reserved,
		IsActive:         !seed.VariantInactive,
	}
	if seed.Size != "" {
		variant.Size = &seed.Size
	}
	if seed.Color != "" {
		variant.Color = &seed.Color
	}
	require.NoError(t, conn.Select("*").Create(&variant).Error)

	if seed.ImageURL != "" {
		image := models.ProductImage{
			ID:        uuid.New(),
			ProductID: product.ID,
			URL:       seed.ImageURL,
			IsPrimary: true,
		}
		require.NoError(t, conn.Create(&image).Error)
	}

	return product, variant
}

// SeedUser inserts an active customer.
func SeedUser(t *testing.T, conn *gorm.DB) models.User {
	t.Helper()

	user := models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		PasswordHash: "hash",
		Name:         "Test Shopper",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// Variant reloads a variant row.
func Variant(t *testing.T, conn *gorm.DB, id uuid.UUID) models.ProductVariant {
	t.Helper()

	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", id).Error)
	return variant
}
