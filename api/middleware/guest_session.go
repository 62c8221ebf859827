package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	sessionHeader = "X-Session-Id"
	sessionCookie = "sf_session"
)

// GuestResolver resumes or replaces guest sessions.
type GuestResolver interface {
	Resolve(ctx context.Context, sessionID string) (session.Record, bool, error)
}

// GuestSessionOptions controls how the session id travels back to the client.
type GuestSessionOptions struct {
	TTL          time.Duration
	CookieSecure bool
}

// GuestSession binds every anonymous request to a guest session. It runs after
// Identity so signed-in shoppers are not issued sessions they never use. The id
// is read from the X-Session-Id header, falling back to the sf_session cookie;
// a missing or expired id is replaced by a fresh session. The active id is
// always echoed back so clients can pick up replacements.
func GuestSession(resolver GuestResolver, opts GuestSessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if resolver == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedSessionID(r)
			if presented == "" && UserIDFromContext(r.Context()) != "" {
				// signed-in shoppers only keep a guest session they already hold
				next.ServeHTTP(w, r)
				return
			}

			record, created, err := resolver.Resolve(r.Context(), presented)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable"))
				return
			}

			ctx := WithSessionID(r.Context(), record.SessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, record.SessionID)
				if created {
					logg.Debug(logg.WithField(ctx, "replaced", presented != ""), "guest_session.created")
				}
			}

			w.Header().Set(sessionHeader, record.SessionID)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    record.SessionID,
				Path:     "/",
				MaxAge:   int(opts.TTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func presentedSessionID(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get(sessionHeader)); sid != "" {
		return sid
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
