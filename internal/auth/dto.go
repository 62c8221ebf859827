package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/transfer"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a customer account.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Name     string  `json:"name" validate:"required,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// AuthResponse is returned by both login and registration.
type AuthResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
	User        *users.Profile   `json:"user"`
	Transfer    *transfer.Result `json:"transfer,omitempty"`
}
