package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryCache) Ping(context.Context) error { return nil }

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryCache) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := m.IncrWithTTL(ctx, "rl:"+scope, window)
	return count <= limit, count, err
}

type stubGuests struct{}

func (stubGuests) Resolve(_ context.Context, sid string) (session.Record, bool, error) {
	now := time.Now().UTC()
	if sid != "" {
		return session.Record{SessionID: sid, CreatedAt: now, LastActivity: now}, false, nil
	}
	return session.Record{SessionID: "issued-session", CreatedAt: now, LastActivity: now}, true, nil
}

type stubCart struct {
	cart.Service
	owner shopper.Owner
}

func (s *stubCart) Add(_ context.Context, owner shopper.Owner, variantID uuid.UUID, qty int) (cart.Line, error) {
	s.owner = owner
	return cart.Line{VariantID: variantID, Quantity: qty}, nil
}

type stubOrders struct {
	orders.Service
	checkouts int
	fulfilled int
}

func (s *stubOrders) Checkout(context.Context, shopper.Owner, orders.CheckoutInput) (*orders.OrderDetail, error) {
	s.checkouts++
	return &orders.OrderDetail{ID: uuid.New(), OrderNumber: "SF-20260501-AAAAAA"}, nil
}

func (s *stubOrders) Fulfill(_ context.Context, orderID uuid.UUID) (*orders.OrderDetail, error) {
	s.fulfilled++
	return &orders.OrderDetail{ID: orderID, FulfillmentStatus: enums.FulfillmentStatusFulfilled}, nil
}

type routerFixture struct {
	handler http.Handler
	cfg     *config.Config
	cart    *stubCart
	orders  *stubOrders
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "test"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30},
		Session:   config.SessionConfig{GuestTTL: time.Hour},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Limit: 100},
		Checkout:  config.CheckoutConfig{RequestTimeout: 5 * time.Second},
		Webhooks:  config.WebhooksConfig{PaymentSecret: "whsec"},
	}
	cartSvc := &stubCart{}
	ordersSvc := &stubOrders{}
	handler := NewRouter(Deps{
		Config: cfg,
		DB:     stubPinger{},
		Cache:  newMemoryCache(),
		Guests: stubGuests{},
		Cart:   cartSvc,
		Orders: ordersSvc,
	})
	return routerFixture{handler: handler, cfg: cfg, cart: cartSvc, orders: ordersSvc}
}

func (f routerFixture) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReady(t *testing.T) {
	f := newRouterFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuestCartAddIssuesSession(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"variant_id":"` + uuid.NewString() + `","quantity":1}`

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "issued-session", rec.Header().Get("X-Session-Id"))
	assert.Equal(t, "issued-session", f.cart.owner.SessionID)
}

func TestSignedInCartAddUsesUser(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"variant_id":"` + uuid.NewString() + `","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.UserRoleCustomer))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, f.cart.owner.IsAuthenticated())
	assert.Empty(t, rec.Header().Get("X-Session-Id"))
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.orders.checkouts)
}

func TestCheckoutReplaysWithSameKey(t *testing.T) {
	f := newRouterFixture(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "order-1")
		req.Header.Set("X-Session-Id", "guest-1")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, f.orders.checkouts)
}

func TestOrdersListRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminFulfillRequiresAdmin(t *testing.T) {
	f := newRouterFixture(t)
	target := "/api/admin/v1/orders/" + uuid.NewString() + "/fulfill"

	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.UserRoleCustomer))
	req.Header.Set("Idempotency-Key", "fulfill-1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, enums.UserRoleAdmin))
	req.Header.Set("Idempotency-Key", "fulfill-2")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.orders.fulfilled)
}

func TestPaymentWebhookRequiresSecret(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"order_id":"` + uuid.NewString() + `","status":"paid"}`

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
