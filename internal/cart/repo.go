package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const upsertCartItemSQL = `
INSERT INTO cart_items (id, user_id, variant_id, quantity, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, variant_id)
DO UPDATE SET quantity = cart_items.quantity + excluded.quantity,
              updated_at = excluded.updated_at
`

// Repository persists cart lines for authenticated users. Every query is scoped by user id.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds the repository to the provided DB handle.
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

// AddItem inserts the line or increments the quantity of the existing one.
func (r *Repository) AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartItem, error) {
	if userID == uuid.Nil || variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and variant id are required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	now := r.now().UTC()
	if err := r.db.WithContext(ctx).
		Exec(upsertCartItemSQL, uuid.New(), userID, variantID, qty, now, now).
		Error; err != nil {
		return nil, err
	}
	return r.FindItem(ctx, userID, variantID)
}

// UpdateQuantity writes an absolute quantity. The line must exist.
func (r *Repository) UpdateQuantity(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND variant_id = ?", userID, variantID).
		Updates(map[string]any{"quantity": qty, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindItem(ctx, userID, variantID)
}

// FindItem loads the user's line for variantID.
func (r *Repository) FindItem(ctx context.Context, userID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND variant_id = ?", userID, variantID).
		Take(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns the user's cart, oldest line first.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveItem deletes the line if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, variantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND variant_id = ?", userID, variantID).
		Delete(&models.CartItem{}).
		Error
}

// ClearItems deletes every line the user owns.
func (r *Repository) ClearItems(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).
		Error
}

// DurableStore adapts the repository to the Store capability.
type DurableStore struct {
	repo *Repository
}

// NewDurableStore wraps repo.
func NewDurableStore(repo *Repository) *DurableStore {
	return &DurableStore{repo: repo}
}

func (s *DurableStore) List(ctx context.Context, owner shopper.Owner) ([]Line, error) {
	if err := requireUser(owner); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, owner.UserID)
	if err != nil {
		return nil, storeUnavailable(err, "list cart items")
	}
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, lineFromModel(item))
	}
	return lines, nil
}

func (s *DurableStore) Get(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) (Line, bool, error) {
	if err := requireUser(owner); err != nil {
		return Line{}, false, err
	}
	item, err := s.repo.FindItem(ctx, owner.UserID, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Line{}, false, nil
		}
		return Line{}, false, storeUnavailable(err, "load cart item")
	}
	return lineFromModel(*item), true, nil
}

func (s *DurableStore) Add(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error) {
	if err := requireUser(owner); err != nil {
		return Line{}, err
	}
	item, err := s.repo.AddItem(ctx, owner.UserID, variantID, qty)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Line{}, err
		}
		return Line{}, storeUnavailable(err, "add cart item")
	}
	return lineFromModel(*item), nil
}

func (s *DurableStore) SetQuantity(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error) {
	if err := requireUser(owner); err != nil {
		return Line{}, err
	}
	item, err := s.repo.UpdateQuantity(ctx, owner.UserID, variantID, qty)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Line{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if pkgerrors.As(err) != nil {
			return Line{}, err
		}
		return Line{}, storeUnavailable(err, "update cart item")
	}
	return lineFromModel(*item), nil
}

func (s *DurableStore) Remove(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) error {
	if err := requireUser(owner); err != nil {
		return err
	}
	if err := s.repo.RemoveItem(ctx, owner.UserID, variantID); err != nil {
		return storeUnavailable(err, "remove cart item")
	}
	return nil
}

func (s *DurableStore) Clear(ctx context.Context, owner shopper.Owner) error {
	if err := requireUser(owner); err != nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, owner.UserID); err != nil {
		return storeUnavailable(err, "clear cart")
	}
	return nil
}

func lineFromModel(item models.CartItem) Line {
	return Line{
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		AddedAt:   item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func requireUser(owner shopper.Owner) error {
	if !owner.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return nil
}

func storeUnavailable(err error, action string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
