// Package sessiongate implements the soft authentication gate: it decodes
// a session token from a cookie and attaches the resulting claims to the
// request, but it never rejects a request. Absent, malformed, and expired
// tokens all proceed anonymous; downstream guards decide what that means.
package sessiongate

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultCookieName matches the identity package session cookie
const DefaultCookieName = "authToken"

// DefaultContextKey is the router Locals key claims are stored under
const DefaultContextKey = "session"

// AuthClaims mirrors the claims interface from the identity package
// without importing it, to avoid cycles.
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Email() string
}

// TokenValidator mirrors identity.TokenService.Validate
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Config holds the gate options
type Config struct {
	// Validator is required, it verifies the raw cookie value
	Validator TokenValidator

	// CookieName is the cookie the session token travels in
	CookieName string

	// ContextKey is the Locals key validated claims are stored under
	ContextKey string

	// Filter skips the gate entirely when it returns true
	Filter func(router.Context) bool

	// ContextEnricher propagates claims into the standard Go context.
	// Called only after successful validation.
	ContextEnricher func(ctx context.Context, claims AuthClaims) context.Context

	// OnRejected observes tokens that were present but failed validation.
	// The request still proceeds anonymous.
	OnRejected func(router.Context, error)
}

func (c *Config) setDefaults() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.ContextKey == "" {
		c.ContextKey = DefaultContextKey
	}
}

// New builds the gate middleware. It panics if no validator is configured,
// that is a wiring mistake, not a runtime condition.
func New(config ...Config) router.MiddlewareFunc {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.setDefaults()

	if cfg.Validator == nil {
		panic("sessiongate: Config.Validator is required")
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw := ctx.Cookies(cfg.CookieName)
			if raw == "" {
				return ctx.Next()
			}

			claims, err := cfg.Validator.Validate(raw)
			if err != nil {
				// Invalid is the same as absent here.
				if cfg.OnRejected != nil {
					cfg.OnRejected(ctx, err)
				}
				return ctx.Next()
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return ctx.Next()
		}
	}
}

// ClaimsFromLocals retrieves gate claims stored on the router context
func ClaimsFromLocals(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}
