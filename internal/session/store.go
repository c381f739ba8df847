package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned for sessions that were revoked or have expired.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state behind a token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	DarkMode  bool      `json:"dark_mode"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps sessions under session:<id> and indexes them per user
// under user_sessions:<user id> so they can be revoked together.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	userPrefix string
}

// NewRedisStore constructs a session store on top of go-redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:", userPrefix: "user_sessions:"}
}

// Save writes the session with a TTL matching its expiry.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	userKey := s.userPrefix + sess.UserID
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+sess.ID, payload, ttl)
		pipe.SAdd(ctx, userKey, sess.ID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

// Update rewrites an existing session without extending its lifetime.
func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.prefix+sess.ID, payload, redis.KeepTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Get loads a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes one session. Deleting a missing session is not an error.
func (s *RedisStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.prefix+id)
		if userID != "" {
			pipe.SRem(ctx, s.userPrefix+userID, id)
		}
		return nil
	})
	return err
}

// DeleteAll removes every session of a user.
func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	userKey := s.userPrefix + userID
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.prefix+id)
	}
	keys = append(keys, userKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(ids), nil
}
