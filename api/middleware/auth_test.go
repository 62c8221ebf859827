package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleAdmin)

	var captured struct {
		user string
		role string
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != string(enums.UserRoleAdmin) {
		t.Fatalf("expected role admin got %s", captured.role)
	}
}

func TestIdentityFallsBackToGuest(t *testing.T) {
	var owner struct {
		authenticated bool
		session       string
	}
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o, ok := OwnerFromContext(r.Context())
		if !ok {
			t.Fatal("expected an owner")
		}
		owner.authenticated = o.IsAuthenticated()
		owner.session = o.SessionID
		w.WriteHeader(http.StatusOK)
	}))

	sid := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithSessionID(req.Context(), sid))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if owner.authenticated || owner.session != sid {
		t.Fatalf("expected guest owner %s got %+v", sid, owner)
	}
}

func TestIdentityPrefersUserOverSession(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleCustomer)

	var got uuid.UUID
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o, _ := OwnerFromContext(r.Context())
		got = o.UserID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(WithSessionID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got != userID {
		t.Fatalf("expected user owner %s got %s", userID, got)
	}
}

func TestIdentityRejectsBadToken(t *testing.T) {
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	send := func(ctx context.Context) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send(context.Background()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", code)
	}
	customer := WithRole(WithUserID(context.Background(), uuid.NewString()), string(enums.UserRoleCustomer))
	if code := send(customer); code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", code)
	}
	admin := WithRole(WithUserID(context.Background(), uuid.NewString()), string(enums.UserRoleAdmin))
	if code := send(admin); code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", code)
	}
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	payload := auth.AccessTokenPayload{
		UserID: userID,
		Email:  "shopper@example.com",
		Role:   role,
	}
	token, err := auth.MintAccessToken(testJWT, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
