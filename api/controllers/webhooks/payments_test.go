package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakePaymentService struct {
	calls  int
	status enums.PaymentStatus
	err    error
}

func (f *fakePaymentService) ApplyPaymentResult(_ context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*orders.OrderDetail, error) {
	f.calls++
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	return &orders.OrderDetail{ID: orderID, PaymentStatus: status}, nil
}

func postPayment(t *testing.T, svc PaymentResultService, secret, header, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	if header != "" {
		req.Header.Set(secretHeader, header)
	}
	rec := httptest.NewRecorder()
	PaymentWebhook(svc, secret, nil).ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookAppliesResult(t *testing.T) {
	svc := &fakePaymentService{}
	body := `{"order_id":"` + uuid.NewString() + `","status":"paid"}`

	rec := postPayment(t, svc, "whsec", "whsec", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 1 || svc.status != enums.PaymentStatusPaid {
		t.Fatalf("unexpected service calls %+v", svc)
	}
}

func TestPaymentWebhookRejectsBadSecret(t *testing.T) {
	svc := &fakePaymentService{}
	body := `{"order_id":"` + uuid.NewString() + `","status":"paid"}`

	for _, header := range []string{"", "wrong", "whsec-longer"} {
		rec := postPayment(t, svc, "whsec", header, body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run without a valid secret")
	}
}

func TestPaymentWebhookRejectsUnknownStatus(t *testing.T) {
	svc := &fakePaymentService{}
	body := `{"order_id":"` + uuid.NewString() + `","status":"refunded"}`

	rec := postPayment(t, svc, "whsec", "whsec", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPaymentWebhookSurfacesStockFailure(t *testing.T) {
	svc := &fakePaymentService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
	body := `{"order_id":"` + uuid.NewString() + `","status":"paid"}`

	rec := postPayment(t, svc, "whsec", "whsec", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(pkgerrors.CodeInsufficientStock)) {
		t.Fatalf("expected insufficient stock code in %s", rec.Body.String())
	}
}

func TestPaymentWebhookRequiresConfiguredSecret(t *testing.T) {
	rec := postPayment(t, &fakePaymentService{}, "", "", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
