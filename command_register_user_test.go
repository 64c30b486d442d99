package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserMessageValidate(t *testing.T) {
	valid := identity.RegisterUserMessage{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "secret-password",
	}
	assert.NoError(t, valid.Validate())

	t.Run("short username", func(t *testing.T) {
		msg := valid
		msg.Username = "ab"
		assert.Error(t, msg.Validate())
	})

	t.Run("bad email", func(t *testing.T) {
		msg := valid
		msg.Email = "not-an-email"
		assert.Error(t, msg.Validate())
	})

	t.Run("short password", func(t *testing.T) {
		msg := valid
		msg.Password = "12345"
		assert.Error(t, msg.Validate())
	})
}

func TestRegisterUserHandler(t *testing.T) {
	orig := identity.BcryptCost
	identity.BcryptCost = 4
	defer func() { identity.BcryptCost = orig }()

	ctx := context.Background()

	t.Run("creates a pending verification user", func(t *testing.T) {
		repo := newMemRepo()
		notifier := &recordingNotifier{}

		var resp *identity.RegisterUserResponse
		handler := identity.NewRegisterUserHandler(repo).
			WithNotifier(notifier).
			WithConfig(newTestConfig())

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "ada",
			Email:    "ada@example.com",
			Password: "secret-password",
			OnResponse: func(r *identity.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)

		user, err := repo.Users().GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)

		assert.False(t, user.Verified)
		assert.True(t, user.HasPendingVerification())
		require.NotNil(t, user.AccountExpiresAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *user.AccountExpiresAt, time.Minute)

		// password is stored hashed
		assert.NotEqual(t, "secret-password", user.PasswordHash)
		assert.NoError(t, identity.ComparePasswordAndHash("secret-password", user.PasswordHash))

		// exactly one verification email carrying the persisted code
		require.Equal(t, 1, notifier.count())
		sent := notifier.last()
		assert.Equal(t, identity.NotificationEmailVerification, sent.Kind)
		assert.Equal(t, "ada@example.com", sent.To)
		require.NotNil(t, user.VerificationCode)
		assert.Equal(t, *user.VerificationCode, sent.Code)
		assert.Len(t, sent.Code, 6)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo := newMemRepo()
		notifier := &recordingNotifier{}

		_, err := registerUser(ctx, repo, notifier, "ada", "ada@example.com", "secret-password")
		require.NoError(t, err)

		err = identity.NewRegisterUserHandler(repo).
			WithNotifier(notifier).
			WithConfig(newTestConfig()).
			Execute(ctx, identity.RegisterUserMessage{
				Username: "ada",
				Email:    "other@example.com",
				Password: "secret-password",
			})

		assert.ErrorIs(t, err, identity.ErrDuplicateUsername)
		assert.Equal(t, 1, repo.users.count(), "no record created on duplicate")
		assert.Equal(t, 1, notifier.count(), "no notification on duplicate")
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newMemRepo()
		notifier := &recordingNotifier{}

		_, err := registerUser(ctx, repo, notifier, "ada", "ada@example.com", "secret-password")
		require.NoError(t, err)

		err = identity.NewRegisterUserHandler(repo).
			WithNotifier(notifier).
			WithConfig(newTestConfig()).
			Execute(ctx, identity.RegisterUserMessage{
				Username: "grace",
				Email:    "ada@example.com",
				Password: "secret-password",
			})

		assert.ErrorIs(t, err, identity.ErrDuplicateEmail)
		assert.Equal(t, 1, repo.users.count())
	})

	t.Run("notification failure does not roll back", func(t *testing.T) {
		repo := newMemRepo()
		notifier := &recordingNotifier{err: assert.AnError}

		err := identity.NewRegisterUserHandler(repo).
			WithNotifier(notifier).
			WithConfig(newTestConfig()).
			Execute(ctx, identity.RegisterUserMessage{
				Username: "ada",
				Email:    "ada@example.com",
				Password: "secret-password",
			})

		require.NoError(t, err)
		_, err = repo.Users().GetByEmail(ctx, "ada@example.com")
		assert.NoError(t, err, "record persisted even though email failed")
	})

	t.Run("cancelled context short circuits", func(t *testing.T) {
		repo := newMemRepo()

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		err := identity.NewRegisterUserHandler(repo).Execute(cancelled, identity.RegisterUserMessage{
			Username: "ada",
			Email:    "ada@example.com",
			Password: "secret-password",
		})

		assert.Error(t, err)
		assert.Equal(t, 0, repo.users.count())
	})
}
