package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Lifecycle error values. Handlers return these directly so callers can
// match with errors.Is or inspect the text code.
var (
	// ErrDuplicateUsername is returned when a registration reuses a taken username
	ErrDuplicateUsername = errors.New("username is already taken", errors.CategoryConflict).
				WithTextCode("DUPLICATE_USERNAME")

	// ErrDuplicateEmail is returned when a registration reuses a taken email
	ErrDuplicateEmail = errors.New("email is already registered", errors.CategoryConflict).
				WithTextCode("DUPLICATE_EMAIL")

	// ErrUserNotFound is returned when no user matches the given email
	ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithTextCode("USER_NOT_FOUND")

	// ErrInvalidCode is returned when no user matches email and verification code
	ErrInvalidCode = errors.New("invalid verification code", errors.CategoryValidation).
			WithTextCode("INVALID_CODE")

	// ErrCodeExpired is returned when a matching verification code is past its expiry
	ErrCodeExpired = errors.New("verification code has expired", errors.CategoryValidation).
			WithTextCode("CODE_EXPIRED")

	// ErrInvalidCredentials is returned for unknown identifiers and wrong
	// passwords alike, so callers can not tell which one failed
	ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode("INVALID_CREDENTIALS")

	// ErrInvalidOrExpiredToken is returned when a password reset token does not
	// match any user or is past its expiry
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token", errors.CategoryValidation).
					WithTextCode("INVALID_OR_EXPIRED_TOKEN")

	// ErrUnauthorized is returned by the guard when no valid identity is attached
	ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("UNAUTHORIZED")

	// ErrTokenExpired is returned for session tokens past their expiry
	ErrTokenExpired = errors.New("session token is expired", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("TOKEN_EXPIRED")

	// ErrTokenMalformed is returned for session tokens that fail to parse or verify
	ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode("TOKEN_MALFORMED")

	// ErrIdentityNotFound is the error we return for non found identities
	ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound)

	// ErrUnableToFindSession is the error when our request has no cookie
	ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized)

	// ErrUnableToDecodeSession unable to decode JWT from session cookie
	ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized)

	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation)

	// ErrMismatchedHashAndPassword is the bcrypt comparison failure
	ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized)
)

// WrapStoreError surfaces infrastructure failures from the credential store
// as a generic internal error, without leaking driver details to callers.
func WrapStoreError(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode("STORE_UNAVAILABLE")
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}
