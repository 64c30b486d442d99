package identity

import (
	"context"
)

var identityCtxKey = &contextKey{"identity"}
var sessionCtxKey = &contextKey{"session"}
var sessionCookieCtxKey = &contextKey{"session-cookie"}

type contextKey struct {
	name string
}

// WithIdentity sets the authenticated Identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the authenticated identity, if any
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok
}

// WithSession sets the decoded Session in the given context
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the decoded session, if any
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// WithSessionCookie carries the raw session cookie value for consumers
// that re-verify it themselves, e.g. the authorization guard.
func WithSessionCookie(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, sessionCookieCtxKey, raw)
}

// SessionCookieFromContext finds the raw session cookie, if any
func SessionCookieFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(sessionCookieCtxKey).(string)
	if raw == "" {
		return "", false
	}
	return raw, ok
}
