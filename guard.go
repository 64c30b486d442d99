package identity

import (
	"context"
)

// RequireIdentity returns the authenticated identity attached to the
// context by the session gate, or ErrUnauthorized. It is read only and
// idempotent, privileged operations call it before any effect.
func RequireIdentity(ctx context.Context) (Identity, error) {
	if id, ok := IdentityFromContext(ctx); ok && id != nil {
		return id, nil
	}

	if session, ok := SessionFromContext(ctx); ok && session != nil {
		return identityFromSessionData(session), nil
	}

	return nil, ErrUnauthorized
}

// Guard enforces authentication for privileged operations. Unlike the
// package level RequireIdentity it can also consume a raw session cookie
// carried in the context, re-verifying it through the authenticator.
type Guard struct {
	auth   Authenticator
	logger Logger
}

// NewGuard creates a Guard backed by the given authenticator
func NewGuard(auth Authenticator) *Guard {
	return &Guard{
		auth:   auth,
		logger: defLogger{},
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// RequireIdentity resolves the identity from whichever form the context
// carries: a pre decoded identity, a decoded session, or the raw cookie.
func (g *Guard) RequireIdentity(ctx context.Context) (Identity, error) {
	if id, err := RequireIdentity(ctx); err == nil {
		return id, nil
	}

	raw, ok := SessionCookieFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	session, err := g.auth.SessionFromToken(raw)
	if err != nil {
		g.logger.Debug("guard could not verify session cookie", "error", err)
		return nil, ErrUnauthorized
	}

	return identityFromSessionData(session), nil
}

// identityFromSessionData builds a lightweight identity from session
// claims without a store round trip.
func identityFromSessionData(session Session) Identity {
	id := authIdentity{id: session.GetUserID()}

	if data := session.GetData(); data != nil {
		if username, ok := data["username"].(string); ok {
			id.username = username
		}
		if email, ok := data["email"].(string); ok {
			id.email = email
		}
	}

	return id
}
