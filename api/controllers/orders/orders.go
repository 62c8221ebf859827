package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxCursorLen = 512

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")

// orderFunc acts on one order addressed by the {orderId} route param.
type orderFunc func(ctx context.Context, owner shopper.Owner, orderID uuid.UUID) (*internalorders.OrderDetail, error)

// List returns the signed-in customer's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errUnavailable)
			return
		}
		owner, ok := middleware.OwnerFromContext(r.Context())
		if !ok || !owner.IsAuthenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := validators.SanitizeString(r.URL.Query().Get("cursor"), maxCursorLen)

		list, err := svc.List(r.Context(), owner.UserID, cursor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order visible to the caller. Guests see orders placed
// from their current session.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return failWith(logg, errUnavailable)
	}
	return forOrder(logg, true, svc.Get)
}

// Cancel cancels an order that has not been fulfilled yet.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return failWith(logg, errUnavailable)
	}
	return forOrder(logg, true, svc.Cancel)
}

// Fulfill marks a paid order as shipped and consumes its reserved stock.
// Callers are already gated to admins, so no owner is required.
func Fulfill(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return failWith(logg, errUnavailable)
	}
	return forOrder(logg, false, func(ctx context.Context, _ shopper.Owner, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
		order, err := svc.Fulfill(ctx, orderID)
		if err == nil && logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
			}), "order.fulfilled")
		}
		return order, err
	})
}

func forOrder(logg *logger.Logger, needOwner bool, fn orderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := middleware.OwnerFromContext(r.Context())
		if needOwner && !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "a user or guest session is required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := fn(r.Context(), owner, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func failWith(logg *logger.Logger, err error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, err)
	}
}
