package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AuthLogin signs a customer in. A guest session bound to the request is
// folded into the account.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service unavailable")
	}
	return jsonAction(logg, http.StatusOK, func(r *http.Request, body auth.LoginRequest) (*auth.AuthResponse, error) {
		return svc.Login(r.Context(), body, middleware.SessionIDFromContext(r.Context()))
	})
}

// AuthRegister creates a customer account and signs it in.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service unavailable")
	}
	return jsonAction(logg, http.StatusCreated, func(r *http.Request, body auth.RegisterRequest) (*auth.AuthResponse, error) {
		return svc.Register(r.Context(), body, middleware.SessionIDFromContext(r.Context()))
	})
}

// jsonAction decodes and validates a T body, runs action and renders its
// result with status. Any failure goes out through the error envelope.
func jsonAction[T, R any](logg *logger.Logger, status int, action func(r *http.Request, body T) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body T
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := action(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func unavailable(logg *logger.Logger, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
