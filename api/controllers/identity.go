package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/shopper"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// requestOwner resolves the cart/favorites owner bound by the Identity and
// GuestSession middlewares.
func requestOwner(r *http.Request) (shopper.Owner, error) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		return shopper.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "a user or guest session is required")
	}
	return owner, nil
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
