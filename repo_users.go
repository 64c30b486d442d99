package identity

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store surface the lifecycle handlers depend on.
// It is deliberately narrow so tests can fake it without dragging the
// generic repository machinery along.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)

	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)

	Create(ctx context.Context, record *User) (*User, error)

	SetVerification(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	PurgeExpiredUnverified(ctx context.Context, now time.Time) (int, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the bun backed credential store
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, WrapStoreError(err, "failed to load user by id")
	}
	return record, nil
}

// GetByIdentifier resolves a user by username OR email, first match wins.
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		return nil, ErrUserNotFound
	}

	for _, opt := range options {
		record := &User{}
		err := a.db.NewSelect().Model(record).
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, WrapStoreError(err, "failed to load user by identifier")
		}

		return record, nil
	}

	return nil, ErrUserNotFound
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, WrapStoreError(err, "failed to load user by email")
	}
	return record, nil
}

func (a *users) GetByResetToken(ctx context.Context, token string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.reset_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, WrapStoreError(err, "failed to load user by reset token")
	}
	return record, nil
}

func (a *users) UsernameTaken(ctx context.Context, username string) (bool, error) {
	count, err := a.db.NewSelect().Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Count(ctx)
	if err != nil {
		return false, WrapStoreError(err, "failed to check username")
	}
	return count > 0, nil
}

func (a *users) EmailTaken(ctx context.Context, email string) (bool, error) {
	count, err := a.db.NewSelect().Model((*User)(nil)).
		Where("?TableAlias.email = ?", email).
		Count(ctx)
	if err != nil {
		return false, WrapStoreError(err, "failed to check email")
	}
	return count > 0, nil
}

// Create inserts the record. The unique indexes on username and email are
// the real duplicate check, the handler pre check only shapes the error.
func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.Create(ctx, record)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return nil, dup
		}
		return nil, WrapStoreError(err, "could not create user")
	}
	return created, nil
}

func (a *users) SetVerification(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"verification_code" = ?,
			"verification_code_expires_at" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, code, expiresAt, time.Now(), id).Exec(ctx)
	if err != nil {
		return WrapStoreError(err, "failed to set verification code")
	}
	return nil
}

// MarkVerified flips the verified flag and clears the pending code and the
// unverified account expiry in one statement.
func (a *users) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"is_verified" = TRUE,
			"verification_code" = NULL,
			"verification_code_expires_at" = NULL,
			"account_expires_at" = NULL,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, time.Now(), id).Exec(ctx)
	if err != nil {
		return WrapStoreError(err, "failed to mark user verified")
	}
	return nil
}

func (a *users) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"reset_token" = ?,
			"reset_token_expires_at" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, expiresAt, time.Now(), id).Exec(ctx)
	if err != nil {
		return WrapStoreError(err, "failed to set reset token")
	}
	return nil
}

// UpdatePassword swaps the hash and consumes any pending reset in one
// statement, so a reset token can never authorize two changes.
func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"password_hash" = ?,
			"reset_token" = NULL,
			"reset_token_expires_at" = NULL,
			"account_expires_at" = NULL,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, passwordHash, time.Now(), id).Exec(ctx)
	if err != nil {
		return WrapStoreError(err, "failed to update password")
	}
	return nil
}

// PurgeExpiredUnverified removes never verified accounts whose bounded
// lifetime has passed. This is the only hard delete the lifecycle does.
func (a *users) PurgeExpiredUnverified(ctx context.Context, now time.Time) (int, error) {
	res, err := a.db.NewDelete().Model((*User)(nil)).
		Where("?TableAlias.is_verified = ?", false).
		Where("?TableAlias.account_expires_at IS NOT NULL").
		Where("?TableAlias.account_expires_at < ?", now).
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return 0, WrapStoreError(err, "failed to purge expired unverified users")
	}

	return rowsPurged(res)
}

func rowsPurged(res sql.Result) (int, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, WrapStoreError(err, "failed to read purge result")
	}
	return int(affected), nil
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

// mapUniqueViolation translates driver level unique index failures into
// the duplicate errors the lifecycle promises. Matches both sqlite
// ("UNIQUE constraint failed: users.username") and postgres
// ("duplicate key value violates unique constraint") phrasings.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	unique := strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")

	if !unique {
		return nil
	}

	if strings.Contains(msg, "username") {
		return ErrDuplicateUsername
	}
	if strings.Contains(msg, "email") {
		return ErrDuplicateEmail
	}
	return ErrDuplicateEmail
}
