// Package identity implements the session and identity lifecycle for a
// social blogging backend: registration with email verification, login,
// password reset, cookie borne JWT sessions, a soft session gate that
// never rejects requests, and an authorization guard that does.
//
// The package is storage backed by bun and hands notification delivery to
// an injected Notifier. All lifecycle operations are exposed as command
// handlers plus an HTTP controller that mounts them on a router.
package identity
