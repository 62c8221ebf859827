package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

// VariantLoader is the catalog read surface the cart prices against.
type VariantLoader interface {
	Variant(ctx context.Context, id uuid.UUID) (catalog.VariantView, error)
	Variants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.VariantView, error)
}

// StockChecker answers availability questions against the stock ledger.
type StockChecker interface {
	IsAvailable(ctx context.Context, variantID uuid.UUID, qty int) (inventory.Availability, error)
}

// Service mutates and prices carts for users and guests alike.
type Service interface {
	Add(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (Line, error)
	// UpdateQuantity returns nil when qty <= 0 removed the line.
	UpdateQuantity(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (*Line, error)
	Remove(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) error
	Clear(ctx context.Context, owner shopper.Owner) error
	GetCartWithTotals(ctx context.Context, owner shopper.Owner) (CartView, error)
	Validate(ctx context.Context, owner shopper.Owner) (ValidationResult, error)
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Durable   Store
	Ephemeral Store
	Catalog   VariantLoader
	Stock     StockChecker
	Metrics   *metrics.Recorder
	Logger    *logger.Logger
}

type service struct {
	durable   Store
	ephemeral Store
	catalog   VariantLoader
	stock     StockChecker
	metrics   *metrics.Recorder
	logg      *logger.Logger
}

// NewService builds a cart service backed by the provided stores.
func NewService(params ServiceParams) (Service, error) {
	if params.Durable == nil {
		return nil, fmt.Errorf("durable cart store required")
	}
	if params.Ephemeral == nil {
		return nil, fmt.Errorf("ephemeral cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	return &service{
		durable:   params.Durable,
		ephemeral: params.Ephemeral,
		catalog:   params.Catalog,
		stock:     params.Stock,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) storeFor(owner shopper.Owner) Store {
	if owner.IsAuthenticated() {
		return s.durable
	}
	return s.ephemeral
}

// Add checks the variant and the combined quantity against available stock,
// then merges qty into the owner's line.
func (s *service) Add(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (line Line, err error) {
	defer func() { s.metrics.CartMutation(opAdd, owner.StoreKind(), err) }()

	if err := owner.Validate(); err != nil {
		return Line{}, err
	}
	if variantID == uuid.Nil {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	variant, err := s.catalog.Variant(ctx, variantID)
	if err != nil {
		return Line{}, err
	}
	if err := ensurePurchasable(variant); err != nil {
		return Line{}, err
	}

	store := s.storeFor(owner)
	existing, _, err := store.Get(ctx, owner, variantID)
	if err != nil {
		return Line{}, err
	}
	if err := s.ensureStock(ctx, variantID, existing.Quantity+qty); err != nil {
		return Line{}, err
	}

	return store.Add(ctx, owner, variantID, qty)
}

// UpdateQuantity sets an absolute quantity, re-checking stock for the full amount.
func (s *service) UpdateQuantity(ctx context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (line *Line, err error) {
	if qty <= 0 {
		return nil, s.Remove(ctx, owner, variantID)
	}
	defer func() { s.metrics.CartMutation(opUpdate, owner.StoreKind(), err) }()

	if err := owner.Validate(); err != nil {
		return nil, err
	}
	store := s.storeFor(owner)
	if _, ok, err := store.Get(ctx, owner, variantID); err != nil {
		return nil, err
	} else if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	variant, err := s.catalog.Variant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if err := ensurePurchasable(variant); err != nil {
		return nil, err
	}
	if err := s.ensureStock(ctx, variantID, qty); err != nil {
		return nil, err
	}

	updated, err := store.SetQuantity(ctx, owner, variantID, qty)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Remove deletes the line. Stock is never reserved by a cart, so nothing is released.
func (s *service) Remove(ctx context.Context, owner shopper.Owner, variantID uuid.UUID) (err error) {
	defer func() { s.metrics.CartMutation(opRemove, owner.StoreKind(), err) }()

	if err := owner.Validate(); err != nil {
		return err
	}
	return s.storeFor(owner).Remove(ctx, owner, variantID)
}

func (s *service) Clear(ctx context.Context, owner shopper.Owner) (err error) {
	defer func() { s.metrics.CartMutation(opClear, owner.StoreKind(), err) }()

	if err := owner.Validate(); err != nil {
		return err
	}
	return s.storeFor(owner).Clear(ctx, owner)
}

// GetCartWithTotals prices every line at current catalog prices. Lines whose
// product or variant is gone or inactive stay in the result with an issue.
func (s *service) GetCartWithTotals(ctx context.Context, owner shopper.Owner) (CartView, error) {
	if err := owner.Validate(); err != nil {
		return CartView{}, err
	}
	lines, err := s.storeFor(owner).List(ctx, owner)
	if err != nil {
		return CartView{}, err
	}
	variants, err := s.loadVariants(ctx, lines)
	if err != nil {
		return CartView{}, err
	}

	view := CartView{Items: make([]LineView, 0, len(lines)), Subtotal: decimal.Zero}
	sum := decimal.Zero
	for _, line := range lines {
		item := priceLine(line, variants)
		if item.Issue != nil {
			view.HasIssues = true
		}
		sum = sum.Add(item.LineTotal)
		view.ItemCount += line.Quantity
		view.Items = append(view.Items, item)
	}
	view.Subtotal = sum.Round(2)
	return view, nil
}

// Validate lists every line that would block checkout.
func (s *service) Validate(ctx context.Context, owner shopper.Owner) (ValidationResult, error) {
	if err := owner.Validate(); err != nil {
		return ValidationResult{}, err
	}
	lines, err := s.storeFor(owner).List(ctx, owner)
	if err != nil {
		return ValidationResult{}, err
	}
	variants, err := s.loadVariants(ctx, lines)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{Issues: []Issue{}}
	for _, line := range lines {
		if issue, ok := lineIssue(line, variants); ok {
			result.Issues = append(result.Issues, issue)
		}
	}
	result.IsValid = len(result.Issues) == 0

	if !result.IsValid && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"store":  owner.StoreKind(),
			"issues": len(result.Issues),
		})
		s.logg.Debug(logCtx, "cart validation found issues")
	}
	return result, nil
}

func (s *service) loadVariants(ctx context.Context, lines []Line) (map[uuid.UUID]catalog.VariantView, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	return s.catalog.Variants(ctx, ids)
}

func (s *service) ensureStock(ctx context.Context, variantID uuid.UUID, total int) error {
	availability, err := s.stock.IsAvailable(ctx, variantID, total)
	if err != nil {
		return err
	}
	if !availability.OK {
		return inventory.NewInsufficientStockError(variantID, total, availability.Available)
	}
	return nil
}

func ensurePurchasable(variant catalog.VariantView) error {
	switch {
	case !variant.ProductActive:
		return unavailableError(variant, enums.CartIssueProductInactive, "product is no longer available")
	case !variant.VariantActive:
		return unavailableError(variant, enums.CartIssueVariantInactive, "this option is no longer available")
	}
	return nil
}

func unavailableError(variant catalog.VariantView, reason enums.CartIssueReason, msg string) error {
	return pkgerrors.New(pkgerrors.CodeItemUnavailable, msg).WithDetails(map[string]any{
		"variant_id": variant.VariantID.String(),
		"reason":     reason.String(),
	})
}

func priceLine(line Line, variants map[uuid.UUID]catalog.VariantView) LineView {
	item := LineView{
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UnitPrice: decimal.Zero,
		LineTotal: decimal.Zero,
		AddedAt:   line.AddedAt,
	}
	variant, found := variants[line.VariantID]
	if found {
		item.ProductID = variant.ProductID
		item.ProductName = variant.ProductName
		item.SKU = variant.SKU
		item.Size = variant.Size
		item.Color = variant.Color
		item.ImageURL = variant.ImageURL
		item.UnitPrice = variant.UnitPrice()
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		item.AvailableQuantity = variant.Available()
	}
	if issue, ok := lineIssue(line, variants); ok {
		reason := issue.Reason
		item.Issue = &reason
	}
	item.Available = item.Issue == nil
	return item
}

func lineIssue(line Line, variants map[uuid.UUID]catalog.VariantView) (Issue, bool) {
	issue := Issue{VariantID: line.VariantID, Requested: line.Quantity}
	variant, found := variants[line.VariantID]
	if !found {
		// a deleted variant can never be bought again
		issue.Reason = enums.CartIssueVariantInactive
		return issue, true
	}
	issue.ProductName = variant.ProductName
	issue.Available = variant.Available()
	switch {
	case !variant.ProductActive:
		issue.Reason = enums.CartIssueProductInactive
	case !variant.VariantActive:
		issue.Reason = enums.CartIssueVariantInactive
	case variant.Available() < line.Quantity:
		issue.Reason = enums.CartIssueInsufficientStock
	default:
		return Issue{}, false
	}
	return issue, true
}
