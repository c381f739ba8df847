package repository

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepository persists accounts.
type UserRepository struct {
	db *gorm.DB
	retrier
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, retrier: defaultRetrier(logger.Named("user_repository"))}
}

// Create inserts a new account. A taken username or email yields ErrDuplicate.
// Emails are stored lowercased.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.Email = normalizeEmail(user.Email)
	return r.executeWithRetry(ctx, "repository.create_user", "", func() error {
		return translate(r.db.WithContext(ctx).Create(user).Error)
	})
}

// FindByUsername looks up an account by its exact login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, "repository.find_user_by_username", "username = ?", username)
}

// FindByEmail looks up an account by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "repository.find_user_by_email", "email = ?", normalizeEmail(email))
}

// FindByID looks up an account by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "repository.find_user_by_id", "id = ?", id)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, "repository.update_password", id, map[string]interface{}{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	})
}

// UpdateProfile changes the display name and email of an account.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, displayName, email string) error {
	return r.update(ctx, "repository.update_profile", id, map[string]interface{}{
		"display_name": displayName,
		"email":        normalizeEmail(email),
		"updated_at":   time.Now().UTC(),
	})
}

func (r *UserRepository) findOne(ctx context.Context, operation, query string, arg interface{}) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, operation, "", func() error {
		return translate(r.db.WithContext(ctx).Where(query, arg).First(&user).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) update(ctx context.Context, operation, id string, fields map[string]interface{}) error {
	return r.executeWithRetry(ctx, operation, "", func() error {
		res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
