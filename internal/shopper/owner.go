// Package shopper identifies who a cart, favorites list or order belongs to.
package shopper

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	StoreDurable   = "durable"
	StoreEphemeral = "ephemeral"
)

// Owner identifies the shopper behind a request. An authenticated user always
// wins over a guest session presented on the same request.
type Owner struct {
	UserID    uuid.UUID
	SessionID string
}

// ForUser builds an owner for an authenticated user.
func ForUser(userID uuid.UUID) Owner {
	return Owner{UserID: userID}
}

// ForGuest builds an owner for an anonymous session.
func ForGuest(sessionID string) Owner {
	return Owner{SessionID: strings.TrimSpace(sessionID)}
}

// IsAuthenticated reports whether durable records back this owner.
func (o Owner) IsAuthenticated() bool {
	return o.UserID != uuid.Nil
}

// StoreKind names the backing store selected for the owner.
func (o Owner) StoreKind() string {
	if o.IsAuthenticated() {
		return StoreDurable
	}
	return StoreEphemeral
}

// Validate rejects an owner carrying neither a user nor a session.
func (o Owner) Validate() error {
	if o.IsAuthenticated() || strings.TrimSpace(o.SessionID) != "" {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "a user or guest session is required")
}
