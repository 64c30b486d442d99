package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the credential record backing an identity. Password hashes and
// pending secrets never serialize, callers get them only through the store.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username     string    `bun:"username,notnull,unique" json:"username,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Verified     bool      `bun:"is_verified,notnull,default:false" json:"is_verified"`

	VerificationCode          *string    `bun:"verification_code,nullzero" json:"-"`
	VerificationCodeExpiresAt *time.Time `bun:"verification_code_expires_at,nullzero" json:"-"`

	ResetToken          *string    `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`

	// AccountExpiresAt bounds the lifetime of never verified accounts.
	// Cleared the moment the account verifies.
	AccountExpiresAt *time.Time `bun:"account_expires_at,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// SetPassword rehashes and replaces the stored password hash. Every code
// path that sets a password goes through here, the old hash is discarded.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// HasPendingVerification reports whether a verification code is in flight
func (u *User) HasPendingVerification() bool {
	return u.VerificationCode != nil && u.VerificationCodeExpiresAt != nil
}

// VerificationExpired reports whether the pending code is past its window
func (u *User) VerificationExpired(now time.Time) bool {
	if u.VerificationCodeExpiresAt == nil {
		return true
	}
	return now.After(*u.VerificationCodeExpiresAt)
}

// HasPendingReset reports whether a password reset is in flight
func (u *User) HasPendingReset() bool {
	return u.ResetToken != nil && u.ResetTokenExpiresAt != nil
}

// ResetExpired reports whether the pending reset token is past its window
func (u *User) ResetExpired(now time.Time) bool {
	if u.ResetTokenExpiresAt == nil {
		return true
	}
	return now.After(*u.ResetTokenExpiresAt)
}

// Sanitized returns a copy safe to hand back to callers: no hash, no
// pending secrets.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	out.VerificationCode = nil
	out.VerificationCodeExpiresAt = nil
	out.ResetToken = nil
	out.ResetTokenExpiresAt = nil
	return &out
}

// Identity adapts the record to the Identity interface
func (u *User) Identity() Identity {
	return authIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
	}
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type authIdentity struct {
	id       string
	username string
	email    string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

var _ Identity = authIdentity{}
