package repository

import "time"

// Analysis sources.
const (
	SourceImage  = "image"
	SourceManual = "manual"
)

// User is a registered account.
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Username     string    `gorm:"column:username;uniqueIndex;size:32;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;size:320;not null"`
	DisplayName  string    `gorm:"column:display_name;size:120"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// Analysis represents a persisted prediction request.
type Analysis struct {
	ID                  uint      `gorm:"primaryKey"`
	RequestID           string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID              string    `gorm:"column:user_id;index;size:64"`
	Source              string    `gorm:"column:source;size:16"`
	FileName            string    `gorm:"column:file_name;size:255"`
	ContentType         string    `gorm:"column:content_type;size:64"`
	SHA256Hash          string    `gorm:"column:sha256_hash;index;size:64"`
	ObjectKey           string    `gorm:"column:object_key;size:255"`
	Label               string    `gorm:"column:label;size:32"`
	Confidence          float32   `gorm:"column:confidence"`
	ModelVersion        string    `gorm:"column:model_version;size:64"`
	ProcessingLatencyMs int64     `gorm:"column:processing_latency_ms"`
	CreatedAt           time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (Analysis) TableName() string {
	return "analyses"
}
