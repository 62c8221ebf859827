package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AddressList returns the caller's saved addresses, default first.
func AddressList(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "address service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AddressCreate saves a new shipping address for the caller.
func AddressCreate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "address service unavailable")
	}
	return jsonAction(logg, http.StatusCreated, func(r *http.Request, req address.CreateRequest) (address.Address, error) {
		userID, err := requestUserID(r)
		if err != nil {
			return address.Address{}, err
		}
		return svc.Create(r.Context(), userID, req)
	})
}
