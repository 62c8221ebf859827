package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// primary image first, then by position
const primaryImageSubquery = `(
  SELECT pi.url FROM product_images pi
  WHERE pi.product_id = p.id
  ORDER BY pi.is_primary DESC, pi.position ASC, pi.created_at ASC
  LIMIT 1
)`

var variantColumns = []string{
	"v.id AS variant_id",
	"v.product_id",
	"p.name AS product_name",
	"p.slug AS product_slug",
	"v.sku",
	"v.size",
	"v.color",
	"p.base_price",
	"v.additional_price",
	"v.stock_quantity",
	"v.reserved_quantity",
	"p.is_active AS product_active",
	"v.is_active AS variant_active",
	primaryImageSubquery + " AS image_url",
}

var productColumns = []string{
	"p.id",
	"p.name",
	"p.slug",
	"p.base_price",
	"p.is_active",
	primaryImageSubquery + " AS image_url",
}

// Reader loads catalog projections. Missing rows surface as NOT_FOUND.
type Reader interface {
	Variant(ctx context.Context, id uuid.UUID) (VariantView, error)
	Variants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]VariantView, error)
	Product(ctx context.Context, id uuid.UUID) (ProductSummary, error)
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductSummary, error)
}

// Repository reads products, variants and images.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Variant loads one variant with its product.
func (r *Repository) Variant(ctx context.Context, id uuid.UUID) (VariantView, error) {
	views, err := r.Variants(ctx, []uuid.UUID{id})
	if err != nil {
		return VariantView{}, err
	}
	view, ok := views[id]
	if !ok {
		return VariantView{}, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"variant_id": id.String()})
	}
	return view, nil
}

// Variants loads every requested variant that exists. Unknown ids are absent from the map.
func (r *Repository) Variants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]VariantView, error) {
	ids = compactIDs(ids)
	out := make(map[uuid.UUID]VariantView, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var records []variantRecord
	err := r.db.WithContext(ctx).
		Table("product_variants v").
		Select(strings.Join(variantColumns, ", ")).
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.id IN ?", ids).
		Scan(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}

	for _, record := range records {
		view, err := record.toView()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "catalog row is malformed")
		}
		out[view.VariantID] = view
	}
	return out, nil
}

// Product loads one product summary.
func (r *Repository) Product(ctx context.Context, id uuid.UUID) (ProductSummary, error) {
	summaries, err := r.Products(ctx, []uuid.UUID{id})
	if err != nil {
		return ProductSummary{}, err
	}
	summary, ok := summaries[id]
	if !ok {
		return ProductSummary{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return summary, nil
}

// Products loads every requested product that exists.
func (r *Repository) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductSummary, error) {
	ids = compactIDs(ids)
	out := make(map[uuid.UUID]ProductSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var records []productRecord
	err := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join(productColumns, ", ")).
		Where("p.id IN ?", ids).
		Scan(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	for _, record := range records {
		summary, err := record.toSummary()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "catalog row is malformed")
		}
		out[summary.ID] = summary
	}
	return out, nil
}

type variantRecord struct {
	VariantID        uuid.UUID           `gorm:"column:variant_id"`
	ProductID        uuid.UUID           `gorm:"column:product_id"`
	ProductName      sql.NullString      `gorm:"column:product_name"`
	ProductSlug      sql.NullString      `gorm:"column:product_slug"`
	SKU              sql.NullString      `gorm:"column:sku"`
	Size             sql.NullString      `gorm:"column:size"`
	Color            sql.NullString      `gorm:"column:color"`
	BasePrice        decimal.NullDecimal `gorm:"column:base_price"`
	AdditionalPrice  decimal.NullDecimal `gorm:"column:additional_price"`
	StockQuantity    int                 `gorm:"column:stock_quantity"`
	ReservedQuantity int                 `gorm:"column:reserved_quantity"`
	ProductActive    bool                `gorm:"column:product_active"`
	VariantActive    bool                `gorm:"column:variant_active"`
	ImageURL         sql.NullString      `gorm:"column:image_url"`
}

func (r variantRecord) toView() (VariantView, error) {
	if r.VariantID == uuid.Nil || r.ProductID == uuid.Nil {
		return VariantView{}, fmt.Errorf("variant row is missing ids")
	}
	if !r.ProductName.Valid || strings.TrimSpace(r.ProductName.String) == "" {
		return VariantView{}, fmt.Errorf("variant %s: product name is missing", r.VariantID)
	}
	if !r.SKU.Valid || r.SKU.String == "" {
		return VariantView{}, fmt.Errorf("variant %s: sku is missing", r.VariantID)
	}
	if !r.BasePrice.Valid {
		return VariantView{}, fmt.Errorf("variant %s: base price is missing", r.VariantID)
	}
	additional := decimal.Zero
	if r.AdditionalPrice.Valid {
		additional = r.AdditionalPrice.Decimal
	}
	if r.StockQuantity < 0 || r.ReservedQuantity < 0 {
		return VariantView{}, fmt.Errorf("variant %s: negative stock counters", r.VariantID)
	}

	return VariantView{
		VariantID:        r.VariantID,
		ProductID:        r.ProductID,
		ProductName:      r.ProductName.String,
		ProductSlug:      r.ProductSlug.String,
		SKU:              r.SKU.String,
		Size:             nullStringPtr(r.Size),
		Color:            nullStringPtr(r.Color),
		BasePrice:        r.BasePrice.Decimal,
		AdditionalPrice:  additional,
		StockQuantity:    r.StockQuantity,
		ReservedQuantity: r.ReservedQuantity,
		ProductActive:    r.ProductActive,
		VariantActive:    r.VariantActive,
		ImageURL:         nullStringPtr(r.ImageURL),
	}, nil
}

type productRecord struct {
	ID        uuid.UUID           `gorm:"column:id"`
	Name      sql.NullString      `gorm:"column:name"`
	Slug      sql.NullString      `gorm:"column:slug"`
	BasePrice decimal.NullDecimal `gorm:"column:base_price"`
	IsActive  bool                `gorm:"column:is_active"`
	ImageURL  sql.NullString      `gorm:"column:image_url"`
}

func (r productRecord) toSummary() (ProductSummary, error) {
	if r.ID == uuid.Nil {
		return ProductSummary{}, fmt.Errorf("product row is missing id")
	}
	if !r.Name.Valid || strings.TrimSpace(r.Name.String) == "" {
		return ProductSummary{}, fmt.Errorf("product %s: name is missing", r.ID)
	}
	if !r.BasePrice.Valid {
		return ProductSummary{}, fmt.Errorf("product %s: base price is missing", r.ID)
	}
	return ProductSummary{
		ID:        r.ID,
		Name:      r.Name.String,
		Slug:      r.Slug.String,
		BasePrice: r.BasePrice.Decimal,
		IsActive:  r.IsActive,
		ImageURL:  nullStringPtr(r.ImageURL),
	}, nil
}

func compactIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
