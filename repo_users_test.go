package identity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateUsers = `CREATE TABLE users (
    id UUID PRIMARY KEY,
    username VARCHAR NOT NULL,
    email VARCHAR NOT NULL,
    password_hash VARCHAR NOT NULL,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verification_code VARCHAR,
    verification_code_expires_at TIMESTAMP,
    reset_token VARCHAR,
    reset_token_expires_at TIMESTAMP,
    account_expires_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP
);
CREATE UNIQUE INDEX users_username_idx ON users (username);
CREATE UNIQUE INDEX users_email_idx ON users (email);`

func setupUsersRepo(t *testing.T) (Users, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return NewUsersRepository(bunDB), cleanup
}

func seedStoredUser(t *testing.T, store Users, username, email string) *User {
	t.Helper()

	record := &User{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$notarealhashnotarealhash",
	}
	created, err := store.Create(context.Background(), record)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	return created
}

func TestUsersRepositoryCreateAndGet(t *testing.T) {
	store, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()
	created := seedStoredUser(t, store, "ada", "ada@example.com")

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", byID.Username)

	byEmail, err := store.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	t.Run("identifier resolves username, email, and id", func(t *testing.T) {
		for _, identifier := range []string{"ada", "ada@example.com", created.ID.String()} {
			got, err := store.GetByIdentifier(ctx, identifier)
			require.NoError(t, err, identifier)
			assert.Equal(t, created.ID, got.ID)
		}
	})

	t.Run("missing records", func(t *testing.T) {
		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = store.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = store.GetByIdentifier(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = store.GetByIdentifier(ctx, "   ")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("taken checks", func(t *testing.T) {
		taken, err := store.UsernameTaken(ctx, "ada")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = store.EmailTaken(ctx, "free@example.com")
		require.NoError(t, err)
		assert.False(t, taken)
	})
}

func TestUsersRepositoryUniqueViolations(t *testing.T) {
	store, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()
	seedStoredUser(t, store, "ada", "ada@example.com")

	_, err := store.Create(ctx, &User{
		Username:     "ada",
		Email:        "other@example.com",
		PasswordHash: "x",
	})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = store.Create(ctx, &User{
		Username:     "grace",
		Email:        "ada@example.com",
		PasswordHash: "x",
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUsersRepositoryVerificationLifecycle(t *testing.T) {
	store, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()
	created := seedStoredUser(t, store, "ada", "ada@example.com")

	expiry := time.Now().Add(15 * time.Minute).UTC()
	require.NoError(t, store.SetVerification(ctx, created.ID, "123456", expiry))

	pending, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, pending.VerificationCode)
	assert.Equal(t, "123456", *pending.VerificationCode)
	assert.True(t, pending.HasPendingVerification())

	require.NoError(t, store.MarkVerified(ctx, created.ID))

	verified, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Nil(t, verified.VerificationCode)
	assert.Nil(t, verified.VerificationCodeExpiresAt)
	assert.Nil(t, verified.AccountExpiresAt)
}

func TestUsersRepositoryResetLifecycle(t *testing.T) {
	store, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()
	created := seedStoredUser(t, store, "ada", "ada@example.com")

	token, err := GenerateResetToken()
	require.NoError(t, err)

	expiry := time.Now().Add(15 * time.Minute).UTC()
	require.NoError(t, store.SetResetToken(ctx, created.ID, token, expiry))

	found, err := store.GetByResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// swapping the hash consumes the token in the same statement
	require.NoError(t, store.UpdatePassword(ctx, created.ID, "$2a$04$newhashnewhashnewhashneh"))

	_, err = store.GetByResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	after, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$newhashnewhashnewhashneh", after.PasswordHash)
	assert.Nil(t, after.ResetToken)
	assert.Nil(t, after.ResetTokenExpiresAt)
}

func TestUsersRepositoryPurgeExpiredUnverified(t *testing.T) {
	store, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	stale := seedStoredUser(t, store, "stale", "stale@example.com")
	past := time.Now().Add(-time.Minute).UTC()
	_, err := store.(*users).db.NewUpdate().Model((*User)(nil)).
		Set("account_expires_at = ?", past).
		Where("id = ?", stale.ID).
		Exec(ctx)
	require.NoError(t, err)

	fresh := seedStoredUser(t, store, "fresh", "fresh@example.com")
	future := time.Now().Add(time.Hour).UTC()
	require.NoError(t, store.SetVerification(ctx, fresh.ID, "123456", future))
	_, err = store.(*users).db.NewUpdate().Model((*User)(nil)).
		Set("account_expires_at = ?", future).
		Where("id = ?", fresh.ID).
		Exec(ctx)
	require.NoError(t, err)

	verified := seedStoredUser(t, store, "done", "done@example.com")
	require.NoError(t, store.MarkVerified(ctx, verified.ID))

	purged, err := store.PurgeExpiredUnverified(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.GetByEmail(ctx, "stale@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetByEmail(ctx, "fresh@example.com")
	assert.NoError(t, err)
	_, err = store.GetByEmail(ctx, "done@example.com")
	assert.NoError(t, err)
}

func TestMapUniqueViolation(t *testing.T) {
	assert.Nil(t, mapUniqueViolation(nil))

	err := mapUniqueViolation(sqlError("UNIQUE constraint failed: users.username"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	err = mapUniqueViolation(sqlError("duplicate key value violates unique constraint \"users_email_idx\" (SQLSTATE 23505)"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	assert.Nil(t, mapUniqueViolation(sqlError("some other failure")))
}

type sqlError string

func (e sqlError) Error() string { return string(e) }

func TestRowsPurged(t *testing.T) {
	count, err := rowsPurged(fakeResult{affected: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = rowsPurged(fakeResult{err: assert.AnError})
	require.Error(t, err)
	assert.True(t, HasTextCode(err, "STORE_UNAVAILABLE"))
}

type fakeResult struct {
	affected int64
	err      error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }

func (r fakeResult) RowsAffected() (int64, error) { return r.affected, r.err }
