package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-identity/middleware/sessiongate"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator owns the session cookie contract: HTTP only, Secure
// and SameSite=None in production, Lax otherwise, 7 day max age.
type RouteAuthenticator struct {
	auth           Authenticator
	tokens         TokenService
	cfg            Config
	cookie         string
	cookieDuration time.Duration
	Logger         Logger
}

// NewHTTPAuthenticator returns the cookie aware authenticator
func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	return &RouteAuthenticator{
		auth:           auther,
		tokens:         auther.TokenService(),
		cfg:            cfg,
		cookie:         cookieName(cfg),
		cookieDuration: tokenExpiration(cfg),
		Logger:         defLogger{},
	}, nil
}

// CookieName returns the session cookie name
func (a *RouteAuthenticator) CookieName() string {
	return a.cookie
}

// GetCookieDuration returns the session cookie lifetime
func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Login authenticates the payload and sets the session cookie. The minted
// token is also returned so JSON responses can carry it.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Debug("login error", "error", err)
		return "", err
	}

	a.SetSessionCookie(ctx, token)
	return token, nil
}

// Logout clears the session cookie. There is nothing server side to
// revoke, expiry is the only invalidation mechanism.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cookie)
}

// SetSessionCookie writes the session token under the configured cookie
func (a *RouteAuthenticator) SetSessionCookie(c router.Context, val string) {
	c.Cookie(&router.Cookie{
		Name:     a.cookie,
		Value:    val,
		Expires:  time.Now().Add(a.cookieDuration),
		HTTPOnly: true,
		Secure:   a.secureCookies(),
		SameSite: a.sameSite(),
	})
}

// SessionGate returns the soft gate middleware: it attaches a decoded
// session and identity to the request context when the cookie validates,
// and proceeds anonymous otherwise. It never rejects a request.
func (a *RouteAuthenticator) SessionGate() router.MiddlewareFunc {
	gate := sessiongate.New(sessiongate.Config{
		Validator:  gateValidator{tokens: a.tokens},
		CookieName: a.cookie,
		ContextEnricher: func(ctx context.Context, claims sessiongate.AuthClaims) context.Context {
			ac, ok := claims.(AuthClaims)
			if !ok {
				return ctx
			}
			session, err := sessionFromAuthClaims(ac)
			if err != nil {
				return ctx
			}
			ctx = WithSession(ctx, session)
			return WithIdentity(ctx, identityFromSessionData(session))
		},
		OnRejected: func(c router.Context, err error) {
			a.Logger.Debug("session cookie rejected, proceeding anonymous", "error", err)
		},
	})

	return func(hf router.HandlerFunc) router.HandlerFunc {
		inner := gate(hf)
		return func(c router.Context) error {
			if raw := c.Cookies(a.cookie); raw != "" {
				c.SetContext(WithSessionCookie(c.Context(), raw))
			}
			return inner(c)
		}
	}
}

func (a *RouteAuthenticator) secureCookies() bool {
	return a.cfg != nil && a.cfg.IsProduction()
}

func (a *RouteAuthenticator) sameSite() string {
	if a.secureCookies() {
		return "None"
	}
	return "Lax"
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies(),
		SameSite: a.sameSite(),
	})
}

// gateValidator adapts TokenService to the sessiongate validator shape
type gateValidator struct {
	tokens TokenService
}

func (v gateValidator) Validate(raw string) (sessiongate.AuthClaims, error) {
	claims, err := v.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)
