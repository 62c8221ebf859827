package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const secretHeader = "X-Webhook-Secret"

type PaymentResultService interface {
	ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*orders.OrderDetail, error)
}

type paymentEvent struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Status  string    `json:"status" validate:"required,oneof=paid failed"`
}

// PaymentWebhook applies a payment outcome reported by the payment provider.
// Callers authenticate with a shared secret header; repeated deliveries of the
// same outcome are no-ops in the order service.
func PaymentWebhook(svc PaymentResultService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		presented := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var event paymentEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.ApplyPaymentResult(ctx, event.OrderID, enums.PaymentStatus(event.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"order_id":       event.OrderID.String(),
				"payment_status": event.Status,
			})
			logg.Info(logCtx, "payment webhook processed")
		}
		responses.WriteSuccess(w, order)
	}
}
