package redis

import "strings"

const defaultNamespace = "sf"

// Key families. Each sits directly under the client namespace.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyGuest       = "guest"
	familyLock        = "lock"
)

// key joins parts under the namespace, skipping blanks so an empty id never
// produces a "a::b" key.
func (c *Client) key(parts ...string) string {
	ns := defaultNamespace
	if c != nil && strings.TrimSpace(c.ns) != "" {
		ns = strings.TrimSpace(c.ns)
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.key(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return c.key(familyRateLimit, scope)
}

// LockKey guards a named job across worker instances.
func (c *Client) LockKey(name string) string {
	return c.key(familyLock, name)
}

// GuestSessionKey holds the JSON session record.
func (c *Client) GuestSessionKey(sessionID string) string {
	return c.key(familyGuest, "session", sessionID)
}

// GuestCartKey is a hash of variant id to quantity.
func (c *Client) GuestCartKey(sessionID string) string {
	return c.key(familyGuest, "cart", sessionID)
}

// GuestCartMetaKey is a hash of variant id to the time it was first added.
func (c *Client) GuestCartMetaKey(sessionID string) string {
	return c.key(familyGuest, "cart_meta", sessionID)
}

// GuestFavoritesKey is a hash of product id to the time it was favorited.
func (c *Client) GuestFavoritesKey(sessionID string) string {
	return c.key(familyGuest, "favorites", sessionID)
}
