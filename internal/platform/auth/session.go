package auth

import (
	"net/http"
	"strings"
)

// SessionHeader carries the anonymous storefront cart session identifier.
const SessionHeader = "X-Cart-Session"

const maxSessionIDLength = 128

// SessionMiddleware extracts the cart session identifier from the request and
// stores it in the context. Requests without a session pass through untouched;
// cart handlers decide whether a session is required.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sanitizeSessionID(r.Header.Get(SessionHeader))
			if sessionID != "" {
				r = r.WithContext(WithSessionID(r.Context(), sessionID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests that do not carry a cart session identifier.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionIDFromContext(r.Context()); !ok {
				respondAuthError(w, http.StatusBadRequest, "session_required", "cart session header missing")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeSessionID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxSessionIDLength {
		return ""
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return ""
		}
	}
	return value
}
