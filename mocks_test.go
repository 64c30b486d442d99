package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memUsers is an in memory credential store used by the handler tests
type memUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*identity.User
}

var _ identity.Users = (*memUsers)(nil)

func newMemUsers() *memUsers {
	return &memUsers{records: map[uuid.UUID]*identity.User{}}
}

func cloneUser(u *identity.User) *identity.User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.records[id]; ok {
		return cloneUser(u), nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUsers) GetByIdentifier(_ context.Context, identifier string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Email == identifier || u.Username == identifier || u.ID.String() == identifier {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUsers) GetByResetToken(_ context.Context, token string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.ResetToken != nil && *u.ResetToken == token {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrInvalidOrExpiredToken
}

func (m *memUsers) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) EmailTaken(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Create(_ context.Context, record *identity.User) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Username == record.Username {
			return nil, identity.ErrDuplicateUsername
		}
		if u.Email == record.Email {
			return nil, identity.ErrDuplicateEmail
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = &now

	m.records[record.ID] = cloneUser(record)
	return cloneUser(record), nil
}

func (m *memUsers) SetVerification(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.records[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.VerificationCode = &code
	u.VerificationCodeExpiresAt = &expiresAt
	return nil
}

func (m *memUsers) MarkVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.records[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.Verified = true
	u.VerificationCode = nil
	u.VerificationCodeExpiresAt = nil
	u.AccountExpiresAt = nil
	return nil
}

func (m *memUsers) SetResetToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.records[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.records[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken = nil
	u.ResetTokenExpiresAt = nil
	u.AccountExpiresAt = nil
	return nil
}

func (m *memUsers) PurgeExpiredUnverified(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, u := range m.records {
		if !u.Verified && u.AccountExpiresAt != nil && u.AccountExpiresAt.Before(now) {
			delete(m.records, id)
			purged++
		}
	}
	return purged, nil
}

// count reports how many records the store holds
func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memRepo satisfies RepositoryManager over the in memory store
type memRepo struct {
	users *memUsers
}

var _ identity.RepositoryManager = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{users: newMemUsers()}
}

func (m *memRepo) Users() identity.Users { return m.users }

func (m *memRepo) Validate() error { return nil }

func (m *memRepo) MustValidate() {}

func (m *memRepo) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// recordingNotifier captures every notification the lifecycle emits
type recordingNotifier struct {
	mu   sync.Mutex
	sent []identity.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg identity.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last() *identity.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	out := n.sent[len(n.sent)-1]
	return &out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// testConfig implements identity.Config for tests
type testConfig struct {
	signingKey      string
	cookieName      string
	tokenExpiration int
	issuer          string
	audience        []string
	verificationTTL time.Duration
	resetTTL        time.Duration
	accountTTL      time.Duration
	production      bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:      "test-signing-key",
		issuer:          "go-identity-test",
		tokenExpiration: 168,
	}
}

func (c *testConfig) GetSigningKey() string                  { return c.signingKey }
func (c *testConfig) GetCookieName() string                  { return c.cookieName }
func (c *testConfig) GetTokenExpiration() int                { return c.tokenExpiration }
func (c *testConfig) GetIssuer() string                      { return c.issuer }
func (c *testConfig) GetAudience() []string                  { return c.audience }
func (c *testConfig) GetVerificationCodeTTL() time.Duration  { return c.verificationTTL }
func (c *testConfig) GetResetTokenTTL() time.Duration        { return c.resetTTL }
func (c *testConfig) GetUnverifiedAccountTTL() time.Duration { return c.accountTTL }
func (c *testConfig) IsProduction() bool                     { return c.production }

// testIdentity is a plain Identity value for token tests
type testIdentity struct {
	id       string
	username string
	email    string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }

// registerUser seeds a pending verification user through the real handler
// and returns the code the notifier saw.
func registerUser(ctx context.Context, repo identity.RepositoryManager, notifier *recordingNotifier, username, email, password string) (string, error) {
	handler := identity.NewRegisterUserHandler(repo).
		WithNotifier(notifier).
		WithConfig(newTestConfig())

	err := handler.Execute(ctx, identity.RegisterUserMessage{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	last := notifier.last()
	if last == nil {
		return "", nil
	}
	return last.Code, nil
}

// verifyUser flips a pending user to verified through the real handler
func verifyUser(ctx context.Context, repo identity.RepositoryManager, tokens identity.TokenService, email, code string) (*identity.VerifyUserResponse, error) {
	var resp *identity.VerifyUserResponse
	handler := identity.NewVerifyUserHandler(repo, tokens)
	err := handler.Execute(ctx, identity.VerifyUserMessage{
		Email: email,
		Code:  code,
		OnResponse: func(r *identity.VerifyUserResponse) {
			resp = r
		},
	})
	return resp, err
}
