package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Muthahireen/clairvoyant/internal/auth"
	"github.com/Muthahireen/clairvoyant/internal/repository"
	"github.com/Muthahireen/clairvoyant/internal/security"
	"github.com/Muthahireen/clairvoyant/internal/session"
)

type memoryUsers struct {
	mu        sync.Mutex
	users     map[string]*repository.User
	updateErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*repository.User)}
}

func (m *memoryUsers) Create(ctx context.Context, user *repository.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryUsers) FindByUsername(ctx context.Context, username string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryUsers) UpdateProfile(ctx context.Context, id, displayName, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range m.users {
		if otherID != id && strings.EqualFold(other.Email, email) {
			return repository.ErrDuplicate
		}
	}
	u.DisplayName = displayName
	u.Email = email
	return nil
}

type recordingMailer struct {
	sent []PasswordResetMail
	err  error
}

func (r *recordingMailer) SendPasswordReset(ctx context.Context, mail PasswordResetMail) error {
	r.sent = append(r.sent, mail)
	return r.err
}

type failingRevoker struct {
	*session.Manager
	err error
}

func (f failingRevoker) RevokeAll(ctx context.Context, userID string) error {
	return f.err
}

type countingObserver struct {
	logins   map[bool]int
	analyses int
}

func (c *countingObserver) ObserveAnalysis(string, string, time.Duration) { c.analyses++ }
func (c *countingObserver) ObserveLogin(success bool) {
	if c.logins == nil {
		c.logins = make(map[bool]int)
	}
	c.logins[success]++
}

type accountFixture struct {
	uc       *AccountUseCase
	users    *memoryUsers
	sessions *session.Manager
	mailer   *recordingMailer
	redis    *miniredis.Miniredis
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	issuer, err := auth.NewTokenIssuer("test-secret", "clairvoyant")
	require.NoError(t, err)
	sessions := session.NewManager(session.NewRedisStore(client), issuer, time.Hour, zap.NewNop())

	users := newMemoryUsers()
	mailer := &recordingMailer{}
	uc := NewAccountUseCase(users, sessions, security.NewBcryptHasher(bcrypt.MinCost), NewRedisCache(client), mailer,
		AccountConfig{ResetTTL: 10 * time.Minute, ResetBaseURL: "http://localhost/reset?token="}, zap.NewNop())
	uc.policy.InitialBackoff = time.Millisecond

	require.NoError(t, uc.SeedDemoAccount(context.Background()))
	return &accountFixture{uc: uc, users: users, sessions: sessions, mailer: mailer, redis: mr}
}

func TestLoginAcceptsDemoAccount(t *testing.T) {
	f := newAccountFixture(t)
	observer := &countingObserver{}
	f.uc.SetObserver(observer)

	result, err := f.uc.Login(context.Background(), DemoUsername, DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, DemoUsername, result.User.Username)
	assert.NotEmpty(t, result.Token)

	identity, err := f.sessions.Resolve(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, identity.UserID)
	assert.Equal(t, 1, observer.logins[true])
}

func TestLoginRejectsEveryOtherPair(t *testing.T) {
	f := newAccountFixture(t)

	cases := []struct{ username, password string }{
		{DemoUsername, "wrong-password"},
		{"nobody", DemoPassword},
		{"", DemoPassword},
		{DemoUsername, ""},
		{"DEMO", DemoPassword},
		{" demo ", DemoPassword},
		{"demo ", DemoPassword},
		{DemoUsername, " " + DemoPassword},
	}
	for _, tc := range cases {
		_, err := f.uc.Login(context.Background(), tc.username, tc.password)
		require.ErrorIs(t, err, ErrInvalidCredentials, "login %q/%q", tc.username, tc.password)
		assert.Equal(t, "invalid credentials", err.Error())
	}
}

func TestSeedDemoAccountIsIdempotent(t *testing.T) {
	f := newAccountFixture(t)
	require.NoError(t, f.uc.SeedDemoAccount(context.Background()))
	assert.Len(t, f.users.users, 1)
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.uc.Register(ctx, " alice ", "alice@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret!", user.PasswordHash)

	_, err = f.uc.Register(ctx, "alice", "other@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = f.uc.Register(ctx, "a", "a@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.uc.Register(ctx, "bob", "not-an-email", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.uc.Register(ctx, "bob", "bob@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.uc.Login(ctx, "alice", "s3cret!")
	assert.NoError(t, err)

	dave, err := f.uc.Register(ctx, "dave", " Dave@Example.COM ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", dave.Email)
	_, err = f.uc.Register(ctx, "dave2", "DAVE@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	result, err := f.uc.Login(ctx, DemoUsername, DemoPassword)
	require.NoError(t, err)
	require.NoError(t, f.uc.Logout(ctx, result.User.ID, result.SessionID))

	_, err = f.sessions.Resolve(ctx, result.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	login, err := f.uc.Login(ctx, DemoUsername, DemoPassword)
	require.NoError(t, err)

	require.NoError(t, f.uc.RequestPasswordReset(ctx, "DEMO@clairvoyant.local"))
	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, DemoEmail, mail.To)
	require.True(t, strings.HasPrefix(mail.Link, "http://localhost/reset?token="))
	token := strings.TrimPrefix(mail.Link, "http://localhost/reset?token=")

	ttl := f.redis.TTL(resetKey(token))
	assert.Equal(t, 10*time.Minute, ttl)

	require.NoError(t, f.uc.ConfirmPasswordReset(ctx, token, "brand-new"))

	_, err = f.uc.Login(ctx, DemoUsername, DemoPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.uc.Login(ctx, DemoUsername, "brand-new")
	assert.NoError(t, err)

	_, err = f.sessions.Resolve(ctx, login.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "sessions opened before the reset must be revoked")

	err = f.uc.ConfirmPasswordReset(ctx, token, "another-one")
	assert.ErrorIs(t, err, ErrResetTokenInvalid, "reset tokens are single use")
}

func requestResetToken(t *testing.T, f *accountFixture) string {
	t.Helper()
	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), DemoEmail))
	require.NotEmpty(t, f.mailer.sent)
	return strings.TrimPrefix(f.mailer.sent[len(f.mailer.sent)-1].Link, "http://localhost/reset?token=")
}

func TestConfirmPasswordResetFailsWhenSessionsSurvive(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	login, err := f.uc.Login(ctx, DemoUsername, DemoPassword)
	require.NoError(t, err)
	token := requestResetToken(t, f)

	revokeErr := errors.New("session store unavailable")
	f.uc.sessions = failingRevoker{Manager: f.sessions, err: revokeErr}
	err = f.uc.ConfirmPasswordReset(ctx, token, "brand-new")
	assert.ErrorIs(t, err, revokeErr)
	assert.True(t, f.redis.Exists(resetKey(token)), "token must survive a failed revocation")

	f.uc.sessions = f.sessions
	require.NoError(t, f.uc.ConfirmPasswordReset(ctx, token, "brand-new"))
	_, err = f.sessions.Resolve(ctx, login.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.False(t, f.redis.Exists(resetKey(token)))
}

func TestConfirmPasswordResetKeepsTokenWhenUpdateFails(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	token := requestResetToken(t, f)

	f.users.updateErr = errors.New("database unavailable")
	assert.ErrorIs(t, f.uc.ConfirmPasswordReset(ctx, token, "brand-new"), f.users.updateErr)

	f.users.updateErr = nil
	require.NoError(t, f.uc.ConfirmPasswordReset(ctx, token, "brand-new"))
	_, err := f.uc.Login(ctx, DemoUsername, "brand-new")
	assert.NoError(t, err)
	assert.ErrorIs(t, f.uc.ConfirmPasswordReset(ctx, token, "again-new"), ErrResetTokenInvalid)
}

func TestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.uc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, f.mailer.sent)

	f.mailer.err = errors.New("smtp down")
	assert.NoError(t, f.uc.RequestPasswordReset(ctx, DemoEmail))

	assert.ErrorIs(t, f.uc.RequestPasswordReset(ctx, "nope"), ErrInvalidInput)
}

func TestConfirmPasswordResetRejectsUnknownToken(t *testing.T) {
	f := newAccountFixture(t)

	assert.ErrorIs(t, f.uc.ConfirmPasswordReset(context.Background(), "missing", "brand-new"), ErrResetTokenInvalid)
	assert.ErrorIs(t, f.uc.ConfirmPasswordReset(context.Background(), "", "brand-new"), ErrResetTokenInvalid)
}

func TestResetTokenExpires(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.RequestPasswordReset(ctx, DemoEmail))
	require.Len(t, f.mailer.sent, 1)
	token := strings.TrimPrefix(f.mailer.sent[0].Link, "http://localhost/reset?token=")

	f.redis.FastForward(11 * time.Minute)
	assert.ErrorIs(t, f.uc.ConfirmPasswordReset(ctx, token, "brand-new"), ErrResetTokenInvalid)
}

func TestUpdateProfile(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	other, err := f.uc.Register(ctx, "carol", "carol@example.com", "s3cret!")
	require.NoError(t, err)

	demo, err := f.users.FindByUsername(ctx, DemoUsername)
	require.NoError(t, err)

	updated, err := f.uc.UpdateProfile(ctx, demo.ID, "Dr. Demo", "dr.demo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Demo", updated.DisplayName)
	assert.Equal(t, "dr.demo@example.com", updated.Email)

	_, err = f.uc.UpdateProfile(ctx, demo.ID, "Dr. Demo", other.Email)
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = f.uc.UpdateProfile(ctx, demo.ID, "  ", "dr.demo@example.com")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.uc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
