package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers so embedding applications can
// route each component to its own channel.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Identity holds the attributes of an authenticated user
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

// LoginPayload is the shape the HTTP surface passes to Login
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// HTTPAuthenticator wires the cookie contract into a router
type HTTPAuthenticator interface {
	Login(c router.Context, payload LoginPayload) (string, error)
	Logout(c router.Context)
	SessionGate() router.MiddlewareFunc
}

// Config holds identity options
type Config interface {
	GetSigningKey() string
	GetCookieName() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetVerificationCodeTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetUnverifiedAccountTTL() time.Duration
	IsProduction() bool
}

// IdentityProvider ensures we have a store to retrieve auth identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

const (
	// DefaultCookieName is the session cookie used when config leaves it blank
	DefaultCookieName = "authToken"
	// DefaultTokenExpiration is the session token lifetime in hours (7 days)
	DefaultTokenExpiration = 168
	// DefaultVerificationCodeTTL is the verification code window
	DefaultVerificationCodeTTL = 15 * time.Minute
	// DefaultResetTokenTTL is the password reset token window
	DefaultResetTokenTTL = 15 * time.Minute
	// DefaultUnverifiedAccountTTL bounds the lifetime of never verified accounts
	DefaultUnverifiedAccountTTL = time.Hour
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func cookieName(cfg Config) string {
	if cfg == nil {
		return DefaultCookieName
	}
	if name := cfg.GetCookieName(); name != "" {
		return name
	}
	return DefaultCookieName
}

func tokenExpiration(cfg Config) time.Duration {
	hours := DefaultTokenExpiration
	if cfg != nil && cfg.GetTokenExpiration() > 0 {
		hours = cfg.GetTokenExpiration()
	}
	return time.Duration(hours) * time.Hour
}

func verificationCodeTTL(cfg Config) time.Duration {
	if cfg != nil && cfg.GetVerificationCodeTTL() > 0 {
		return cfg.GetVerificationCodeTTL()
	}
	return DefaultVerificationCodeTTL
}

func resetTokenTTL(cfg Config) time.Duration {
	if cfg != nil && cfg.GetResetTokenTTL() > 0 {
		return cfg.GetResetTokenTTL()
	}
	return DefaultResetTokenTTL
}

func unverifiedAccountTTL(cfg Config) time.Duration {
	if cfg != nil && cfg.GetUnverifiedAccountTTL() > 0 {
		return cfg.GetUnverifiedAccountTTL()
	}
	return DefaultUnverifiedAccountTTL
}
