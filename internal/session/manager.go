package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/auth"
	"github.com/Muthahireen/clairvoyant/internal/logging"
)

// Store is the persistence used by the manager.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	Update(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
}

// Issued is a freshly created session together with its bearer token.
type Issued struct {
	Session *Session
	Token   string
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	store  Store
	tokens *auth.TokenIssuer
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewManager wires a session manager.
func NewManager(store Store, tokens *auth.TokenIssuer, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{store: store, tokens: tokens, ttl: ttl, logger: logger.Named("session_manager"), now: time.Now}
}

// Create starts a session for the user and signs its token.
func (m *Manager) Create(ctx context.Context, userID, username string) (*Issued, error) {
	now := m.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, logging.NewOperationError("session.create", "", err)
	}
	token, err := m.tokens.Issue(userID, sess.ID, sess.ExpiresAt)
	if err != nil {
		_ = m.store.Delete(ctx, userID, sess.ID)
		return nil, logging.NewOperationError("session.sign", "", err)
	}
	m.logger.Debug("session created", zap.String("user_id", userID), zap.String("session_id", sess.ID))
	return &Issued{Session: sess, Token: token}, nil
}

// Resolve implements auth.SessionResolver.
func (m *Manager) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	claims, err := m.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	sess, err := m.store.Get(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, logging.NewOperationError("session.resolve", "", err)
	}
	if sess.UserID != claims.Subject || !m.now().Before(sess.ExpiresAt) {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{
		UserID:    sess.UserID,
		Username:  sess.Username,
		SessionID: sess.ID,
		DarkMode:  sess.DarkMode,
	}, nil
}

// Get returns the current state of a session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, logging.NewOperationError("session.get", "", err)
	}
	return sess, err
}

// SetDarkMode toggles the per-session display preference.
func (m *Manager) SetDarkMode(ctx context.Context, sessionID string, enabled bool) (*Session, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.DarkMode = enabled
	if err := m.store.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, logging.NewOperationError("session.update", "", err)
	}
	return sess, nil
}

// Revoke ends a single session (logout).
func (m *Manager) Revoke(ctx context.Context, userID, sessionID string) error {
	return logging.NewOperationError("session.revoke", "", m.store.Delete(ctx, userID, sessionID))
}

// RevokeAll ends every session of a user.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	n, err := m.store.DeleteAll(ctx, userID)
	if err != nil {
		return logging.NewOperationError("session.revoke_all", "", err)
	}
	m.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	return nil
}
