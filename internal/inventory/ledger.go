package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Availability is the answer to "can qty units of a variant be sold right now".
type Availability struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	OK        bool      `json:"ok"`
}

// Shortfall is attached as error details when stock cannot cover a request.
type Shortfall struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Ledger reads and mutates the stock_quantity/reserved_quantity pair of a variant.
// Reserve is a single conditional UPDATE so two concurrent callers can never both
// claim the last units.
type Ledger interface {
	IsAvailable(ctx context.Context, variantID uuid.UUID, qty int) (Availability, error)
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

type ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger binds the ledger to the shared connection. Mutations accept an
// optional transaction that takes precedence over it.
func NewLedger(db *gorm.DB) (Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &ledger{db: db, now: time.Now}, nil
}

// NewInsufficientStockError reports that only available units remain.
func NewInsufficientStockError(variantID uuid.UUID, requested, available int) error {
	if available < 0 {
		available = 0
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d left in stock", available)).
		WithDetails(Shortfall{VariantID: variantID, Requested: requested, Available: available})
}

type stockRow struct {
	StockQuantity    int
	ReservedQuantity int
}

func (l *ledger) handle(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

func (l *ledger) read(ctx context.Context, conn *gorm.DB, variantID uuid.UUID) (int, error) {
	var row stockRow
	err := conn.WithContext(ctx).
		Table("product_variants").
		Select("stock_quantity", "reserved_quantity").
		Where("id = ?", variantID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "variant not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}
	available := row.StockQuantity - row.ReservedQuantity
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (l *ledger) IsAvailable(ctx context.Context, variantID uuid.UUID, qty int) (Availability, error) {
	if err := validateRequest(variantID, qty); err != nil {
		return Availability{}, err
	}
	available, err := l.read(ctx, l.db, variantID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		VariantID: variantID,
		Requested: qty,
		Available: available,
		OK:        available >= qty,
	}, nil
}

func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateRequest(variantID, qty); err != nil {
		return err
	}
	conn := l.handle(ctx, tx)

	res := conn.Exec(`
		UPDATE product_variants
		SET reserved_quantity = reserved_quantity + ?,
			updated_at = ?
		WHERE id = ? AND stock_quantity - reserved_quantity >= ?
	`, qty, l.now().UTC(), variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	available, err := l.read(ctx, conn, variantID)
	if err != nil {
		return err
	}
	return NewInsufficientStockError(variantID, qty, available)
}

func (l *ledger) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateRequest(variantID, qty); err != nil {
		return err
	}

	// reserved_quantity is floored at zero so a double release cannot corrupt the ledger.
	res := l.handle(ctx, tx).Exec(`
		UPDATE product_variants
		SET reserved_quantity = CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END,
			updated_at = ?
		WHERE id = ?
	`, qty, qty, l.now().UTC(), variantID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}

func (l *ledger) Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateRequest(variantID, qty); err != nil {
		return err
	}

	res := l.handle(ctx, tx).Exec(`
		UPDATE product_variants
		SET stock_quantity = stock_quantity - ?,
			reserved_quantity = reserved_quantity - ?,
			updated_at = ?
		WHERE id = ? AND reserved_quantity >= ? AND stock_quantity >= ?
	`, qty, qty, l.now().UTC(), variantID, qty, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no reservation to commit for variant").
			WithDetails(map[string]any{"variant_id": variantID, "quantity": qty})
	}
	return nil
}

func validateRequest(variantID uuid.UUID, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
