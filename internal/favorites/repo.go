package favorites

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const insertFavoriteSQL = `
INSERT INTO favorites (id, user_id, product_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, product_id) DO NOTHING
`

// Repository encapsulates durable favorites persistence.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs a favorites repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// AddItem inserts a favorite and ignores duplicates. The bool reports whether a row was written.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return r.AddItemAt(ctx, userID, productID, r.now())
}

// AddItemAt is AddItem with an explicit creation time, used to keep a guest's ordering on transfer.
func (r *Repository) AddItemAt(ctx context.Context, userID, productID uuid.UUID, at time.Time) (bool, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return false, gorm.ErrInvalidValue
	}
	if at.IsZero() {
		at = r.now()
	}
	res := r.db.WithContext(ctx).Exec(insertFavoriteSQL, uuid.New(), userID, productID, at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveItem deletes the user-product favorite if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{}).
		Error
}

// Exists reports whether the user liked the product.
func (r *Repository) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListItems returns a cursor-paginated, newest-first page of favorites with product summaries.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, cursor string, limit int) (Page, error) {
	after, err := pagination.ParseCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	selectColumns := []string{
		"f.id AS favorite_id",
		"f.created_at AS favorite_created_at",
		"p.id AS product_id",
		"p.name",
		"p.slug",
		"p.base_price",
		"p.is_active",
		`(SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id
  ORDER BY pi.is_primary DESC, pi.position ASC, pi.created_at ASC LIMIT 1) AS image_url`,
	}

	query := r.db.WithContext(ctx).
		Table("favorites f").
		Select(strings.Join(selectColumns, ", ")).
		Joins("JOIN products p ON p.id = f.product_id").
		Where("f.user_id = ?", userID)

	var records []favoriteRecord
	if err := after.After(query, "f.created_at", "f.id").
		Order("f.created_at DESC").
		Order("f.id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Scan(&records).Error; err != nil {
		return Page{}, err
	}

	rows, nextCursor := pagination.Trim(records, limit, func(rec favoriteRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rec.FavoriteCreatedAt, ID: rec.FavoriteID}
	})

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return Page{}, err
	}

	items := make([]Item, 0, len(rows))
	for _, record := range rows {
		items = append(items, record.toItem())
	}
	return Page{Items: items, Total: int(total), NextCursor: nextCursor}, nil
}

type favoriteRecord struct {
	FavoriteID        uuid.UUID       `gorm:"column:favorite_id"`
	FavoriteCreatedAt time.Time       `gorm:"column:favorite_created_at"`
	ProductID         uuid.UUID       `gorm:"column:product_id"`
	Name              string          `gorm:"column:name"`
	Slug              string          `gorm:"column:slug"`
	BasePrice         decimal.Decimal `gorm:"column:base_price"`
	IsActive          bool            `gorm:"column:is_active"`
	ImageURL          sql.NullString  `gorm:"column:image_url"`
}

func (r favoriteRecord) toItem() Item {
	summary := catalog.ProductSummary{
		ID:        r.ProductID,
		Name:      r.Name,
		Slug:      r.Slug,
		BasePrice: r.BasePrice,
		IsActive:  r.IsActive,
	}
	if r.ImageURL.Valid {
		url := r.ImageURL.String
		summary.ImageURL = &url
	}
	return Item{Product: summary, AddedAt: r.FavoriteCreatedAt}
}
