package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type favoriteRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type favoriteStatus struct {
	ProductID  uuid.UUID `json:"product_id"`
	IsFavorite bool      `json:"is_favorite"`
}

// FavoritesList returns the owner's favorites, newest first.
func FavoritesList(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "favorites service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requestOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := validators.SanitizeString(r.URL.Query().Get("cursor"), 512)

		page, err := svc.List(r.Context(), owner, cursor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// FavoritesAdd marks a product as a favorite. Repeats are harmless and return 200.
func FavoritesAdd(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "favorites service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requestOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload favoriteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		added, err := svc.Add(r.Context(), owner, payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, favoriteStatus{ProductID: payload.ProductID, IsFavorite: true})
	}
}

// FavoritesCheck reports whether a product is a favorite of the owner.
func FavoritesCheck(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "favorites service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requestOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ok, err := svc.IsFavorite(r.Context(), owner, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, favoriteStatus{ProductID: productID, IsFavorite: ok})
	}
}

// FavoritesRemove drops a product from the owner's favorites.
func FavoritesRemove(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "favorites service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requestOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), owner, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
