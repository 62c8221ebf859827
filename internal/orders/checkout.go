package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	orderNumberPrefix   = "SF"
	orderNumberAttempts = 3
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	cartReadAttempts    = 2
)

type customer struct {
	email string
	name  string
	phone *string
}

// Checkout freezes the owner's cart into a pending order. Any validation issue
// rejects the checkout with CART_INVALID and no order row is written. Stock is
// not touched here; it is reserved when payment is confirmed.
func (s *service) Checkout(ctx context.Context, owner shopper.Owner, input CheckoutInput) (detail *OrderDetail, err error) {
	started := s.now()
	defer func() { s.metrics.Checkout(err, s.now().Sub(started)) }()

	if err := owner.Validate(); err != nil {
		return nil, err
	}

	view, err := s.pricedCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	contact, err := s.resolveCustomer(ctx, owner, input)
	if err != nil {
		return nil, err
	}
	shipping, err := s.addresses.Resolve(ctx, owner, input.AddressID, input.ShippingAddress)
	if err != nil {
		return nil, err
	}

	totals := computeTotals(view.Subtotal, s.pricing)
	now := s.now().UTC()
	order := buildOrder(owner, contact, shipping, totals, input.Notes, now)
	items := snapshotLines(view.Items, now)

	for attempt := 1; ; attempt++ {
		order.ID = uuid.New()
		order.OrderNumber, err = newOrderNumber(now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		for i := range items {
			items[i].ID = uuid.New()
			items[i].OrderID = order.ID
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.CreateOrder(ctx, order); err != nil {
				return err
			}
			return repo.CreateOrderLineItems(ctx, items)
		})
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, "") && attempt < orderNumberAttempts {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}
	order.LineItems = items

	if err := s.cart.Clear(ctx, owner); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"store":    owner.StoreKind(),
		})
		s.logg.Error(logCtx, "clear cart after checkout", err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"lines":        len(items),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return detailFromModel(order), nil
}

// pricedCart validates and then prices the cart. A priced view that reports
// issues after a clean validation means the cart moved between the reads; the
// pair is read again before giving up with a retryable conflict.
func (s *service) pricedCart(ctx context.Context, owner shopper.Owner) (cart.CartView, error) {
	for attempt := 1; ; attempt++ {
		validation, err := s.cart.Validate(ctx, owner)
		if err != nil {
			return cart.CartView{}, err
		}
		if !validation.IsValid {
			return cart.CartView{}, cartInvalid(validation.Issues)
		}

		view, err := s.cart.GetCartWithTotals(ctx, owner)
		if err != nil {
			return cart.CartView{}, err
		}
		if !view.HasIssues {
			return view, nil
		}
		if attempt == cartReadAttempts {
			return cart.CartView{}, pkgerrors.New(pkgerrors.CodeCartChanged, "cart changed between validation and pricing")
		}
	}
}

func (s *service) resolveCustomer(ctx context.Context, owner shopper.Owner, input CheckoutInput) (customer, error) {
	contact := customer{
		email: strings.ToLower(strings.TrimSpace(input.Email)),
		name:  strings.TrimSpace(input.Name),
		phone: input.Phone,
	}
	if owner.IsAuthenticated() {
		user, err := s.customers.FindByID(ctx, owner.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return customer{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return customer{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}
		if contact.email == "" {
			contact.email = user.Email
		}
		if contact.name == "" {
			contact.name = user.Name
		}
		if contact.phone == nil {
			contact.phone = user.Phone
		}
	}
	if contact.email == "" {
		return customer{}, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if contact.name == "" {
		return customer{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return contact, nil
}

// computeTotals applies the flat shipping and tax rates. Every amount is
// rounded to cents before the total is summed.
func computeTotals(subtotal decimal.Decimal, pricing config.CheckoutConfig) Totals {
	subtotal = subtotal.Round(2)
	shipping := pricing.ShippingRate().Round(2)
	if threshold := pricing.FreeShippingFrom(); threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(pricing.Tax()).Round(2)
	discount := decimal.Zero
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(shipping).Add(tax).Sub(discount).Round(2),
	}
}

func buildOrder(owner shopper.Owner, contact customer, shipping types.ShippingAddress, totals Totals, notes *string, now time.Time) *models.Order {
	order := &models.Order{
		CustomerEmail:     contact.email,
		CustomerName:      contact.name,
		CustomerPhone:     contact.phone,
		ShippingAddress:   shipping,
		SubtotalAmount:    totals.Subtotal,
		ShippingAmount:    totals.Shipping,
		TaxAmount:         totals.Tax,
		DiscountAmount:    totals.Discount,
		TotalAmount:       totals.Total,
		PaymentStatus:     enums.PaymentStatusPending,
		FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		Notes:             notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if owner.IsAuthenticated() {
		userID := owner.UserID
		order.UserID = &userID
	} else {
		sessionID := owner.SessionID
		order.SessionID = &sessionID
	}
	return order
}

// snapshotLines copies the catalog fields so later product edits never reach
// the order.
func snapshotLines(lines []cart.LineView, now time.Time) []models.OrderLineItem {
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		productID := line.ProductID
		variantID := line.VariantID
		items = append(items, models.OrderLineItem{
			ProductID:   &productID,
			VariantID:   &variantID,
			ProductName: line.ProductName,
			SKU:         line.SKU,
			Size:        copyString(line.Size),
			Color:       copyString(line.Color),
			UnitPrice:   line.UnitPrice.Round(2),
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal.Round(2),
			ImageURL:    copyString(line.ImageURL),
			CreatedAt:   now,
		})
	}
	return items
}

func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), suffix), nil
}

func cartInvalid(issues []cart.Issue) error {
	return pkgerrors.New(pkgerrors.CodeCartInvalid, "cart has items that cannot be ordered").
		WithDetails(map[string]any{"issues": issues})
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
