package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultRoleClaim    = "roles"
	defaultEmailClaim   = "email"
	defaultClockSkew    = 30 * time.Second
	defaultFallbackRole = RoleStaff
)

var (
	// ErrTokenExpired signals that the provided admin token has expired.
	ErrTokenExpired = errors.New("auth: admin token expired")
	// ErrTokenInvalid signals that the provided admin token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: admin token invalid")
)

type adminClaims struct {
	Email string `json:"email,omitempty"`
	Roles any    `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256-signed admin bearer tokens.
type Authenticator struct {
	secret []byte

	roleClaim    string
	emailClaim   string
	fallbackRole string
	clockSkew    time.Duration
	now          func() time.Time
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithFallbackRole sets the default role when no role claim is present.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithClockSkew sets the leeway applied when validating token timestamps.
func WithClockSkew(d time.Duration) Option {
	return func(a *Authenticator) {
		if d >= 0 {
			a.clockSkew = d
		}
	}
}

// WithClock overrides the time source used during validation (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret:       []byte(secret),
		roleClaim:    defaultRoleClaim,
		emailClaim:   defaultEmailClaim,
		fallbackRole: defaultFallbackRole,
		clockSkew:    defaultClockSkew,
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// VerifyToken parses and validates the bearer token, returning the identity it carries.
func (a *Authenticator) VerifyToken(tokenStr string) (*Identity, error) {
	if a == nil || len(a.secret) == 0 {
		return nil, ErrTokenInvalid
	}

	claims := &adminClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.clockSkew),
		jwt.WithTimeFunc(a.now),
	)

	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	identity := &Identity{
		Subject: claims.Subject,
		Email:   strings.TrimSpace(claims.Email),
		Roles:   rolesFromClaim(claims.Roles),
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	return identity, nil
}

// RequireRoles verifies the Authorization bearer token and ensures allowed roles.
func (a *Authenticator) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}

			identity, err := a.VerifyToken(tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			if len(identity.Roles) == 0 {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no roles associated with identity")
				return
			}
			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin is shorthand for RequireRoles(RoleAdmin, RoleStaff).
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return a.RequireRoles(RoleAdmin, RoleStaff)
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		role := normaliseRole(v)
		if role == "" {
			return nil
		}
		return []string{role}
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			role := normaliseRole(item)
			if role != "" {
				out = append(out, role)
			}
		}
		return out
	default:
		return nil
	}
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "admin token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "admin token invalid")
	}
}
