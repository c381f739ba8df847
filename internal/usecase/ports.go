package usecase

import (
	"context"
	"time"

	"github.com/Muthahireen/clairvoyant/internal/repository"
)

// AnalysisRepository defines the persistence operations needed by the analysis flow.
type AnalysisRepository interface {
	Save(ctx context.Context, analysis *repository.Analysis) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.Analysis, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*repository.Analysis, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.Analysis, error)
	AggregateMetrics(ctx context.Context, userID string) (*repository.MetricsAggregation, error)
	CountLabelsSince(ctx context.Context, userID string, since time.Time) ([]repository.LabelCount, error)
}

// UserRepository defines the persistence operations needed by the credential store.
type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	FindByUsername(ctx context.Context, username string) (*repository.User, error)
	FindByEmail(ctx context.Context, email string) (*repository.User, error)
	FindByID(ctx context.Context, id string) (*repository.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateProfile(ctx context.Context, id, displayName, email string) error
}

// ObjectStorage keeps original uploads.
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// AnalysisCompleted is published after an analysis has been persisted.
type AnalysisCompleted struct {
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Source       string    `json:"source"`
	Label        string    `json:"label"`
	Confidence   float32   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventPublisher announces completed analyses.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted) error
}

// PasswordResetMail is the content of a reset email.
type PasswordResetMail struct {
	To       string
	Username string
	Link     string
}

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, mail PasswordResetMail) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AnalysisObserver receives business metrics.
type AnalysisObserver interface {
	ObserveAnalysis(source, label string, latency time.Duration)
	ObserveLogin(success bool)
}

type nopObserver struct{}

func (nopObserver) ObserveAnalysis(string, string, time.Duration) {}
func (nopObserver) ObserveLogin(bool)                             {}
