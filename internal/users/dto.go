package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Profile is what an account looks like to its owner. Credentials never leave
// the package through it.
type Profile struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewUser is a registration that has passed validation and hashing.
// A nil Active means active.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Role         enums.UserRole
	Active       *bool
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// Model builds the row to insert with a fresh id.
func (n NewUser) Model() *models.User {
	u := &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(n.Email),
		PasswordHash: n.PasswordHash,
		Name:         strings.TrimSpace(n.Name),
		Phone:        n.Phone,
		Role:         n.Role,
		IsActive:     n.Active == nil || *n.Active,
	}
	if !u.Role.IsValid() {
		u.Role = enums.UserRoleCustomer
	}
	return u
}
