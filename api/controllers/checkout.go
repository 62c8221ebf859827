package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Checkout converts the owner's cart into an order. Replays are answered by
// the idempotency middleware before this runs.
func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "checkout service unavailable")
	}
	return jsonAction(logg, http.StatusCreated, func(r *http.Request, input orders.CheckoutInput) (*orders.OrderDetail, error) {
		owner, err := requestOwner(r)
		if err != nil {
			return nil, err
		}
		return svc.Checkout(r.Context(), owner, input)
	})
}
