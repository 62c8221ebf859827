package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type memCart struct {
	mu    sync.Mutex
	lines map[string][]cart.Line
}

func newMemCart() *memCart {
	return &memCart{lines: map[string][]cart.Line{}}
}

func (m *memCart) List(_ context.Context, owner shopper.Owner) ([]cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Line(nil), m.lines[owner.SessionID]...), nil
}

func (m *memCart) Get(_ context.Context, owner shopper.Owner, variantID uuid.UUID) (cart.Line, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.lines[owner.SessionID] {
		if line.VariantID == variantID {
			return line, true, nil
		}
	}
	return cart.Line{}, false, nil
}

func (m *memCart) Add(_ context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines[owner.SessionID]
	for i := range lines {
		if lines[i].VariantID == variantID {
			lines[i].Quantity += qty
			return lines[i], nil
		}
	}
	line := cart.Line{VariantID: variantID, Quantity: qty, AddedAt: time.Now().UTC()}
	m.lines[owner.SessionID] = append(lines, line)
	return line, nil
}

func (m *memCart) SetQuantity(_ context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines[owner.SessionID]
	for i := range lines {
		if lines[i].VariantID == variantID {
			lines[i].Quantity = qty
			return lines[i], nil
		}
	}
	return cart.Line{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func (m *memCart) Remove(_ context.Context, owner shopper.Owner, variantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines[owner.SessionID]
	for i := range lines {
		if lines[i].VariantID == variantID {
			m.lines[owner.SessionID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCart) Clear(_ context.Context, owner shopper.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, owner.SessionID)
	return nil
}

type fixture struct {
	conn   *gorm.DB
	svc    *service
	carts  cart.Service
	ledger inventory.Ledger
	user   models.User
	owner  shopper.Owner
	tee    models.ProductVariant
	hoodie models.ProductVariant
	teeP   models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn := dbtest.Open(t)
	ledger, err := inventory.NewLedger(conn)
	require.NoError(t, err)

	carts, err := cart.NewService(cart.ServiceParams{
		Durable:   cart.NewDurableStore(cart.NewRepository(conn)),
		Ephemeral: newMemCart(),
		Catalog:   catalog.NewRepository(conn),
		Stock:     ledger,
	})
	require.NoError(t, err)

	addresses, err := address.NewService(address.NewRepository(conn), db.NewFromConn(conn))
	require.NoError(t, err)

	built, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        db.NewFromConn(conn),
		Cart:      carts,
		Addresses: addresses,
		Customers: users.NewRepository(conn),
		Stock:     ledger,
		Pricing: config.CheckoutConfig{
			ShippingFlatRate:      "5.99",
			FreeShippingThreshold: "75.00",
			TaxRate:               "0.08",
		},
	})
	require.NoError(t, err)
	svc := built.(*service)

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	user := dbtest.SeedUser(t, conn)
	teeP, tee := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{Name: "Tee", BasePrice: "10.00", Color: "black", Stock: 10})
	_, hoodie := dbtest.SeedVariant(t, conn, dbtest.VariantSeed{
		Name:            "Hoodie",
		BasePrice:       "20.00",
		AdditionalPrice: "2.50",
		Size:            "L",
		Stock:           5,
	})

	return fixture{
		conn:   conn,
		svc:    svc,
		carts:  carts,
		ledger: ledger,
		user:   user,
		owner:  shopper.ForUser(user.ID),
		tee:    tee,
		hoodie: hoodie,
		teeP:   teeP,
	}
}

func (f fixture) fillCart(t *testing.T, owner shopper.Owner) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.Add(ctx, owner, f.tee.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, owner, f.hoodie.ID, 1)
	require.NoError(t, err)
}

func inlineAddress() *types.ShippingAddress {
	return &types.ShippingAddress{
		FullName:   "Sam Shopper",
		Line1:      "1 Main St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
	}
}

func (f fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func lineFor(t *testing.T, items []LineItem, variantID uuid.UUID) LineItem {
	t.Helper()
	for _, item := range items {
		if item.VariantID != nil && *item.VariantID == variantID {
			return item
		}
	}
	t.Fatalf("no line for variant %s", variantID)
	return LineItem{}
}

func money(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got)
}

func TestCheckoutSnapshotsCartAndClearsIt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)

	order, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, enums.FulfillmentStatusUnfulfilled, order.FulfillmentStatus)
	require.Equal(t, f.user.Email, order.CustomerEmail)
	require.Equal(t, f.user.Name, order.CustomerName)
	require.Regexp(t, `^SF-20260501-[A-Z2-9]{6}$`, order.OrderNumber)
	require.Len(t, order.LineItems, 2)

	money(t, "42.50", order.Totals.Subtotal)
	money(t, "5.99", order.Totals.Shipping)
	money(t, "3.40", order.Totals.Tax)
	money(t, "0", order.Totals.Discount)
	money(t, "51.89", order.Totals.Total)

	hoodie := lineFor(t, order.LineItems, f.hoodie.ID)
	require.Equal(t, "Hoodie", hoodie.ProductName)
	require.NotNil(t, hoodie.Size)
	require.Equal(t, "L", *hoodie.Size)
	money(t, "22.50", hoodie.UnitPrice)

	view, err := f.carts.GetCartWithTotals(ctx, f.owner)
	require.NoError(t, err)
	require.Empty(t, view.Items)

	// stock is untouched until payment
	require.Equal(t, 0, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)
}

func TestCheckoutSnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)

	placed, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Product{}).
		Where("id = ?", f.teeP.ID).
		Updates(map[string]any{"name": "Renamed Tee", "base_price": decimal.RequireFromString("99.00")}).Error)

	loaded, err := f.svc.Get(ctx, f.owner, placed.ID)
	require.NoError(t, err)
	tee := lineFor(t, loaded.LineItems, f.tee.ID)
	require.Equal(t, "Tee", tee.ProductName)
	money(t, "10.00", tee.UnitPrice)
	money(t, "20.00", tee.LineTotal)
	require.NotNil(t, tee.Color)
	require.Equal(t, "black", *tee.Color)
	money(t, "51.89", loaded.Totals.Total)
}

func TestCheckoutRejectsInvalidCartWithoutOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)

	require.NoError(t, f.conn.Model(&models.ProductVariant{}).
		Where("id = ?", f.hoodie.ID).
		UpdateColumn("is_active", false).Error)

	_, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCartInvalid))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	issues, ok := details["issues"].([]cart.Issue)
	require.True(t, ok)
	require.Len(t, issues, 1)
	require.Equal(t, f.hoodie.ID, issues[0].VariantID)
	require.Equal(t, enums.CartIssueVariantInactive, issues[0].Reason)

	require.Zero(t, f.countOrders(t))
	view, err := f.carts.GetCartWithTotals(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
}

func TestCheckoutCatchesOverbooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.carts.Add(ctx, f.owner, f.hoodie.ID, 3)
	require.NoError(t, err)
	// another shopper's paid order claims three of the five units
	require.NoError(t, f.ledger.Reserve(ctx, nil, f.hoodie.ID, 3))

	_, err = f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCartInvalid))
	issues := pkgerrors.As(err).Details().(map[string]any)["issues"].([]cart.Issue)
	require.Len(t, issues, 1)
	require.Equal(t, enums.CartIssueInsufficientStock, issues[0].Reason)
	require.Equal(t, 2, issues[0].Available)
	require.Zero(t, f.countOrders(t))
}

// churningCart reports issues on the priced read a fixed number of times, the
// way a cart edited between validation and pricing looks.
type churningCart struct {
	cartService
	dirtyReads int
}

func (c *churningCart) GetCartWithTotals(ctx context.Context, owner shopper.Owner) (cart.CartView, error) {
	view, err := c.cartService.GetCartWithTotals(ctx, owner)
	if c.dirtyReads > 0 {
		c.dirtyReads--
		view.HasIssues = true
	}
	return view, err
}

func TestCheckoutRereadsCartThatMovedDuringPricing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)
	f.svc.cart = &churningCart{cartService: f.carts, dirtyReads: 1}

	detail, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)
	require.Len(t, detail.LineItems, 2)
}

func TestCheckoutReportsRetryableConflictWhenCartKeepsMoving(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)
	f.svc.cart = &churningCart{cartService: f.carts, dirtyReads: cartReadAttempts}

	_, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCartChanged))
	require.False(t, pkgerrors.IsCode(err, pkgerrors.CodeCartInvalid))
	require.True(t, pkgerrors.Retryable(err))
	require.Zero(t, f.countOrders(t))
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Zero(t, f.countOrders(t))
}

func TestComputeTotals(t *testing.T) {
	pricing := config.CheckoutConfig{ShippingFlatRate: "5.99", FreeShippingThreshold: "75.00", TaxRate: "0.0825"}

	below := computeTotals(decimal.RequireFromString("74.99"), pricing)
	money(t, "5.99", below.Shipping)
	money(t, "6.19", below.Tax)
	money(t, "87.17", below.Total)

	above := computeTotals(decimal.RequireFromString("75.00"), pricing)
	money(t, "0", above.Shipping)
	money(t, "6.19", above.Tax)
	money(t, "81.19", above.Total)

	noThreshold := computeTotals(decimal.RequireFromString("500"), config.CheckoutConfig{ShippingFlatRate: "4.00"})
	money(t, "4.00", noThreshold.Shipping)
	money(t, "0", noThreshold.Tax)
	money(t, "504.00", noThreshold.Total)
}

func TestGuestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guest := shopper.ForGuest("guest-1")
	f.fillCart(t, guest)

	_, err := f.svc.Checkout(ctx, guest, CheckoutInput{ShippingAddress: inlineAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "guests must supply contact details")

	_, err = f.svc.Checkout(ctx, guest, CheckoutInput{Email: "guest@example.com", Name: "Guest"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "guests must supply an address")
	require.Zero(t, f.countOrders(t))

	order, err := f.svc.Checkout(ctx, guest, CheckoutInput{
		Email:           "Guest@Example.com",
		Name:            "Guest",
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)
	require.Equal(t, "guest@example.com", order.CustomerEmail)
	require.Equal(t, "US", order.ShippingAddress.Country)

	_, err = f.svc.Get(ctx, guest, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, shopper.ForGuest("guest-2"), order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Get(ctx, f.owner, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPaymentReservesThenFulfillmentCommits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)
	placed, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	_, err = f.svc.Fulfill(ctx, placed.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "pending orders cannot ship")

	paid, err := f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	require.True(t, paid.StockReserved)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, 2, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)
	require.Equal(t, 1, dbtest.Variant(t, f.conn, f.hoodie.ID).ReservedQuantity)

	again, err := f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, again.PaymentStatus)
	require.Equal(t, 2, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity, "duplicate confirmation must not reserve twice")

	_, err = f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusFailed)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	shipped, err := f.svc.Fulfill(ctx, placed.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentStatusFulfilled, shipped.FulfillmentStatus)
	require.False(t, shipped.StockReserved)

	tee := dbtest.Variant(t, f.conn, f.tee.ID)
	require.Equal(t, 8, tee.StockQuantity)
	require.Equal(t, 0, tee.ReservedQuantity)

	_, err = f.svc.Cancel(ctx, f.owner, placed.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "fulfilled orders cannot be cancelled")
}

func TestPaymentReservationIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)
	placed, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Reserve(ctx, nil, f.hoodie.ID, 5))

	_, err = f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusPaid)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	loaded, err := f.svc.Get(ctx, f.owner, placed.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, loaded.PaymentStatus)
	require.False(t, loaded.StockReserved)
	require.Equal(t, 0, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)
}

func TestPaymentFailedHasNoStockEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, f.owner)
	placed, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	failed, err := f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusFailed)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)
	require.Equal(t, 0, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)

	_, err = f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusPaid)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.ApplyPaymentResult(ctx, placed.ID, enums.PaymentStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.fillCart(t, f.owner)
	pending, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, shopper.ForUser(uuid.New()), pending.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	cancelled, err := f.svc.Cancel(ctx, f.owner, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCancelled, cancelled.PaymentStatus)
	require.Equal(t, enums.FulfillmentStatusCancelled, cancelled.FulfillmentStatus)
	require.NotNil(t, cancelled.CancelledAt)

	f.fillCart(t, f.owner)
	paid, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)
	_, err = f.svc.ApplyPaymentResult(ctx, paid.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, 2, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)

	released, err := f.svc.Cancel(ctx, f.owner, paid.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, released.PaymentStatus)
	require.Equal(t, enums.FulfillmentStatusCancelled, released.FulfillmentStatus)
	require.False(t, released.StockReserved)
	require.Equal(t, 0, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)
	require.Equal(t, 10, dbtest.Variant(t, f.conn, f.tee.ID).StockQuantity)

	_, err = f.svc.Cancel(ctx, f.owner, paid.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestListPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	placed := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		_, err := f.carts.Add(ctx, f.owner, f.tee.ID, 1)
		require.NoError(t, err)
		order, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
		require.NoError(t, err)
		placed = append(placed, order.ID)
	}

	first, err := f.svc.List(ctx, f.user.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.Equal(t, placed[2], first.Orders[0].ID)
	require.Equal(t, placed[1], first.Orders[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, f.user.ID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Equal(t, placed[0], second.Orders[0].ID)
	require.Empty(t, second.NextCursor)

	_, err = f.svc.List(ctx, f.user.ID, "not-a-cursor", 2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExpirePendingCancelsOnlyStaleUnpaidOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.fillCart(t, f.owner)
	stale, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	f.fillCart(t, f.owner)
	paid, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)
	_, err = f.svc.ApplyPaymentResult(ctx, paid.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)

	f.fillCart(t, f.owner)
	recent, err := f.svc.Checkout(ctx, f.owner, CheckoutInput{ShippingAddress: inlineAddress()})
	require.NoError(t, err)

	n, err := f.svc.ExpirePending(ctx, stale.CreatedAt, 0)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = f.svc.ExpirePending(ctx, recent.CreatedAt, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	expired, err := f.svc.Get(ctx, f.owner, stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCancelled, expired.PaymentStatus)
	require.Equal(t, enums.FulfillmentStatusCancelled, expired.FulfillmentStatus)

	untouched, err := f.svc.Get(ctx, f.owner, paid.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, untouched.PaymentStatus)
	require.Equal(t, 2, dbtest.Variant(t, f.conn, f.tee.ID).ReservedQuantity)

	still, err := f.svc.Get(ctx, f.owner, recent.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, still.PaymentStatus)

	n, err = f.svc.ExpirePending(ctx, recent.CreatedAt.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.svc.ExpirePending(ctx, recent.CreatedAt.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}
