package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartService interface {
	Validate(ctx context.Context, owner shopper.Owner) (cart.ValidationResult, error)
	GetCartWithTotals(ctx context.Context, owner shopper.Owner) (cart.CartView, error)
	Clear(ctx context.Context, owner shopper.Owner) error
}

type addressResolver interface {
	Resolve(ctx context.Context, owner shopper.Owner, addressID *uuid.UUID, inline *types.ShippingAddress) (types.ShippingAddress, error)
}

type customerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StockLedger moves reserved stock as payment and fulfillment progress.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Service defines checkout and the order lifecycle.
type Service interface {
	Checkout(ctx context.Context, owner shopper.Owner, input CheckoutInput) (*OrderDetail, error)
	Get(ctx context.Context, owner shopper.Owner, orderID uuid.UUID) (*OrderDetail, error)
	List(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*OrderList, error)
	Cancel(ctx context.Context, owner shopper.Owner, orderID uuid.UUID) (*OrderDetail, error)
	ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*OrderDetail, error)
	Fulfill(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	// ExpirePending cancels orders still awaiting payment that were placed
	// before the cutoff and reports how many it cancelled.
	ExpirePending(ctx context.Context, before time.Time, limit int) (int, error)
}

// ServiceParams bundles the collaborators of the order service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Cart      cartService
	Addresses addressResolver
	Customers customerLookup
	Stock     StockLedger
	Pricing   config.CheckoutConfig
	Metrics   *metrics.Recorder
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	cart      cartService
	addresses addressResolver
	customers customerLookup
	stock     StockLedger
	pricing   config.CheckoutConfig
	metrics   *metrics.Recorder
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		cart:      params.Cart,
		addresses: params.Addresses,
		customers: params.Customers,
		stock:     params.Stock,
		pricing:   params.Pricing,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, owner shopper.Owner, orderID uuid.UUID) (*OrderDetail, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !ownedBy(order, owner) {
		return nil, orderNotFound()
	}
	return detailFromModel(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.ListUserOrders(ctx, userID, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// ApplyPaymentResult records the gateway outcome. A paid order reserves stock
// for every line in the same transaction; if any line cannot be reserved the
// order stays pending. Repeating the current status is a no-op.
func (s *service) ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (detail *OrderDetail, err error) {
	defer func() { s.metrics.PaymentResult(status.String(), err) }()

	if status != enums.PaymentStatusPaid && status != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment status must be paid or failed")
	}

	var result *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == status {
			result = order
			return nil
		}
		if !order.PaymentStatus.CanTransitionTo(status) || order.FulfillmentStatus != enums.FulfillmentStatusUnfulfilled {
			return illegalTransition(order, "payment_status", status.String())
		}

		now := s.now().UTC()
		updates := map[string]any{"payment_status": status}
		if status == enums.PaymentStatusPaid {
			for _, item := range order.LineItems {
				if item.VariantID == nil {
					continue
				}
				if err := s.stock.Reserve(ctx, tx, *item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
			updates["stock_reserved"] = true
			updates["paid_at"] = now
		}

		if err := s.transition(ctx, repo, order, updates); err != nil {
			return err
		}
		result, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       orderID.String(),
			"payment_status": result.PaymentStatus.String(),
		})
		s.logg.Info(logCtx, "payment result applied")
	}
	return detailFromModel(result), nil
}

// Cancel lets the owner withdraw an unfulfilled order. Reserved stock goes
// back to the ledger; a paid order keeps its payment status for refunding.
func (s *service) Cancel(ctx context.Context, owner shopper.Owner, orderID uuid.UUID) (*OrderDetail, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !ownedBy(order, owner) {
			return orderNotFound()
		}
		if err := s.cancel(ctx, tx, repo, order); err != nil {
			return err
		}
		result, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detailFromModel(result), nil
}

// Fulfill ships a paid order and turns its reservation into a stock decrement.
func (s *service) Fulfill(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusPaid ||
			!order.FulfillmentStatus.CanTransitionTo(enums.FulfillmentStatusFulfilled) {
			return illegalTransition(order, "fulfillment_status", enums.FulfillmentStatusFulfilled.String())
		}

		if order.StockReserved {
			for _, item := range order.LineItems {
				if item.VariantID == nil {
					continue
				}
				if err := s.stock.Commit(ctx, tx, *item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}

		updates := map[string]any{
			"fulfillment_status": enums.FulfillmentStatusFulfilled,
			"fulfilled_at":       s.now().UTC(),
			"stock_reserved":     false,
		}
		if err := s.transition(ctx, repo, order, updates); err != nil {
			return err
		}
		result, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detailFromModel(result), nil
}

func (s *service) ExpirePending(ctx context.Context, before time.Time, limit int) (int, error) {
	ids, err := s.repo.FindStalePending(ctx, before, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale pending orders")
	}

	expired := 0
	var errs error
	for _, id := range ids {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			if order.PaymentStatus != enums.PaymentStatusPending ||
				order.FulfillmentStatus != enums.FulfillmentStatusUnfulfilled {
				return errOrderMoved
			}
			return s.cancel(ctx, tx, repo, order)
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errOrderMoved) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			// paid or cancelled between the scan and the update
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}

	s.metrics.OrdersExpired(expired)
	if s.logg != nil && (expired > 0 || errs != nil) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"scanned": len(ids),
			"expired": expired,
			"before":  before.UTC(),
		})
		s.logg.Info(logCtx, "stale pending orders expired")
	}
	return expired, errs
}

var errOrderMoved = errors.New("order no longer pending")

// cancel moves order to cancelled and hands any reserved stock back to the
// ledger. A paid order keeps its payment status.
func (s *service) cancel(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	if !order.FulfillmentStatus.CanTransitionTo(enums.FulfillmentStatusCancelled) {
		return illegalTransition(order, "fulfillment_status", enums.FulfillmentStatusCancelled.String())
	}

	updates := map[string]any{
		"fulfillment_status": enums.FulfillmentStatusCancelled,
		"cancelled_at":       s.now().UTC(),
	}
	if order.PaymentStatus.CanTransitionTo(enums.PaymentStatusCancelled) {
		updates["payment_status"] = enums.PaymentStatusCancelled
	}
	if order.StockReserved {
		for _, item := range order.LineItems {
			if item.VariantID == nil {
				continue
			}
			if err := s.stock.Release(ctx, tx, *item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		updates["stock_reserved"] = false
	}
	return s.transition(ctx, repo, order, updates)
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) transition(ctx context.Context, repo Repository, order *models.Order, updates map[string]any) error {
	from := StatusPair{Payment: order.PaymentStatus, Fulfillment: order.FulfillmentStatus}
	updates["updated_at"] = s.now().UTC()
	ok, err := repo.TransitionOrder(ctx, order.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return nil
}

func ownedBy(order *models.Order, owner shopper.Owner) bool {
	if owner.IsAuthenticated() {
		return order.UserID != nil && *order.UserID == owner.UserID
	}
	return order.UserID == nil && order.SessionID != nil && *order.SessionID == owner.SessionID
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func illegalTransition(order *models.Order, axis, target string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move to %s", target)).
		WithDetails(map[string]any{
			"axis":               axis,
			"payment_status":     order.PaymentStatus.String(),
			"fulfillment_status": order.FulfillmentStatus.String(),
		})
}
