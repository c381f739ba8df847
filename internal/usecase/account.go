package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/logging"
	"github.com/Muthahireen/clairvoyant/internal/repository"
	"github.com/Muthahireen/clairvoyant/internal/security"
	"github.com/Muthahireen/clairvoyant/internal/session"
)

// Demo account that is always available for the login gate.
const (
	DemoUsername = "demo"
	DemoPassword = "demo123"
	DemoEmail    = "demo@clairvoyant.local"
)

const (
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

// UsernamePattern is the accepted shape of a username.
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// SessionIssuer is the part of the session manager used by the credential store.
type SessionIssuer interface {
	Create(ctx context.Context, userID, username string) (*session.Issued, error)
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	User      *repository.User
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// AccountUseCase is the credential store: registration, login and password reset.
type AccountUseCase struct {
	users        UserRepository
	sessions     SessionIssuer
	hasher       PasswordHasher
	cache        Cache
	mailer       Mailer
	observer     AnalysisObserver
	resetTTL     time.Duration
	resetBaseURL string
	logger       *zap.Logger
	redisRetry

	dummyOnce sync.Once
	dummyHash string
}

// AccountConfig carries the password reset settings.
type AccountConfig struct {
	ResetTTL     time.Duration
	ResetBaseURL string
}

// NewAccountUseCase constructs the credential store.
func NewAccountUseCase(users UserRepository, sessions SessionIssuer, hasher PasswordHasher, cache Cache, mailer Mailer, cfg AccountConfig, logger *zap.Logger) *AccountUseCase {
	named := logger.Named("account_usecase")
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	return &AccountUseCase{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		cache:        cache,
		mailer:       mailer,
		observer:     nopObserver{},
		resetTTL:     cfg.ResetTTL,
		resetBaseURL: cfg.ResetBaseURL,
		logger:       named,
		redisRetry:   newRedisRetry(named),
	}
}

// SetObserver records login metrics.
func (uc *AccountUseCase) SetObserver(observer AnalysisObserver) {
	if observer != nil {
		uc.observer = observer
	}
}

// Register creates an account.
func (uc *AccountUseCase) Register(ctx context.Context, username, email, password string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if !UsernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-32 letters, digits, '.', '_' or '-'", ErrInvalidInput)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, logging.NewOperationError("usecase.hash_password", "", err)
	}

	now := time.Now().UTC()
	user := &repository.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	uc.logger.Info("account created", zap.String("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Login verifies credentials and opens a session. Every failure cause is
// reported as ErrInvalidCredentials.
func (uc *AccountUseCase) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	// Credentials are compared exactly as typed.
	if username == "" || password == "" {
		uc.observer.ObserveLogin(false)
		return nil, ErrInvalidCredentials
	}

	user, err := uc.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		// Spend the same hashing time as a real comparison.
		_ = uc.hasher.Compare(uc.dummyPasswordHash(), password)
		uc.observer.ObserveLogin(false)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := uc.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			uc.logger.Warn("password comparison failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		uc.observer.ObserveLogin(false)
		return nil, ErrInvalidCredentials
	}

	issued, err := uc.sessions.Create(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	uc.observer.ObserveLogin(true)
	return &LoginResult{
		User:      user,
		Token:     issued.Token,
		SessionID: issued.Session.ID,
		ExpiresAt: issued.Session.ExpiresAt,
	}, nil
}

// Logout ends the caller's session.
func (uc *AccountUseCase) Logout(ctx context.Context, userID, sessionID string) error {
	return uc.sessions.Revoke(ctx, userID, sessionID)
}

// RequestPasswordReset mails a one-time reset link when the email belongs to
// an account. It reports success either way so callers cannot probe for accounts.
func (uc *AccountUseCase) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.request_password_reset", "")

	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			opLogger.Error("account lookup failed", zap.Error(err))
		}
		return nil
	}

	token, err := newResetToken()
	if err != nil {
		opLogger.Error("failed to generate reset token", zap.Error(err))
		return nil
	}
	if err := uc.withRedisRetry(ctx, "", "cache.set.password_reset", func() error {
		return uc.cache.Set(ctx, resetKey(token), user.ID, uc.resetTTL)
	}); err != nil {
		opLogger.Error("failed to store reset token", zap.Error(err))
		return nil
	}

	if err := uc.mailer.SendPasswordReset(ctx, PasswordResetMail{
		To:       user.Email,
		Username: user.Username,
		Link:     uc.resetBaseURL + token,
	}); err != nil {
		opLogger.Error("failed to send reset email", zap.Error(err), zap.String("user_id", user.ID))
		return nil
	}
	opLogger.Info("password reset requested", zap.String("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset sets the new password, ends every session of the
// account and only then burns the reset token.
func (uc *AccountUseCase) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := uc.withRedisGet(ctx, "", "cache.get.password_reset", func() (string, error) {
		return uc.cache.Get(ctx, resetKey(token))
	})
	if errors.Is(err, redis.Nil) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}

	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return logging.NewOperationError("usecase.hash_password", "", err)
	}
	if err := uc.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	// The token stays valid until every session is gone so a failed
	// revocation can be retried with the same link.
	if err := uc.withRedisRetry(ctx, "", "session.revoke_all", func() error {
		return uc.sessions.RevokeAll(ctx, userID)
	}); err != nil {
		return err
	}
	if err := uc.withRedisRetry(ctx, "", "cache.del.password_reset", func() error {
		_, err := uc.cache.GetDel(ctx, resetKey(token))
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}
	uc.logger.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

// GetProfile loads the caller's account.
func (uc *AccountUseCase) GetProfile(ctx context.Context, userID string) (*repository.User, error) {
	user, err := uc.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// UpdateProfile changes the display name and email shown in the sidebar.
func (uc *AccountUseCase) UpdateProfile(ctx context.Context, userID, displayName, email string) (*repository.User, error) {
	displayName = strings.TrimSpace(displayName)
	email = normalizeEmail(email)
	if displayName == "" || len(displayName) > 120 {
		return nil, fmt.Errorf("%w: display name must be 1-120 characters", ErrInvalidInput)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := uc.users.UpdateProfile(ctx, userID, displayName, email); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, mapRepoError(err)
	}
	return uc.GetProfile(ctx, userID)
}

// SeedDemoAccount makes sure the demo login exists.
func (uc *AccountUseCase) SeedDemoAccount(ctx context.Context) error {
	_, err := uc.users.FindByUsername(ctx, DemoUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	user, err := uc.Register(ctx, DemoUsername, DemoEmail, DemoPassword)
	if errors.Is(err, ErrAccountExists) {
		return nil
	}
	if err != nil {
		return err
	}
	uc.logger.Info("demo account seeded", zap.String("user_id", user.ID))
	return nil
}

func (uc *AccountUseCase) dummyPasswordHash() string {
	uc.dummyOnce.Do(func() {
		hash, err := uc.hasher.Hash(uuid.NewString())
		if err == nil {
			uc.dummyHash = hash
		}
	})
	return uc.dummyHash
}

// normalizeEmail lowercases addresses so uniqueness holds regardless of case.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrInvalidInput, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func resetKey(token string) string {
	return "pwreset:" + token
}
