package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the API and its companion commands.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	Development     bool

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	JWTAudience string
	SessionTTL  time.Duration

	// InferenceAddr points at a gRPC classifier. Empty selects the built-in stub.
	InferenceAddr   string
	InferenceListen string
	AnalysisDelay   time.Duration
	MaxUploadSize   int64
	MaxImageWidth   int
	MaxImageHeight  int

	PasswordResetTTL     time.Duration
	PasswordResetBaseURL string
	SendGridAPIKey       string
	MailSender           string

	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3UsePathStyle    bool

	RabbitURL      string
	RabbitExchange string

	LoginRatePerMinute int
	LoginBurst         int

	ContentFile   string
	SeedDemoUser  bool
	MetricsEnable bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Development:     getEnvBool("DEV_MODE", false),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseDSN:    getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=clairvoyant port=5432 sslmode=disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 12*time.Hour),

		InferenceAddr:   os.Getenv("INFERENCE_ADDR"),
		InferenceListen: getEnv("INFERENCE_LISTEN", ":50051"),
		AnalysisDelay:   getEnvDuration("ANALYSIS_DELAY", 2*time.Second),
		MaxUploadSize:   getEnvInt64("MAX_UPLOAD_SIZE", 10<<20),
		MaxImageWidth:   getEnvInt("MAX_IMAGE_WIDTH", 8000),
		MaxImageHeight:  getEnvInt("MAX_IMAGE_HEIGHT", 8000),

		PasswordResetTTL:     getEnvDuration("PASSWORD_RESET_TTL", 30*time.Minute),
		PasswordResetBaseURL: getEnv("PASSWORD_RESET_BASE_URL", "http://localhost:8080/reset-password?token="),
		SendGridAPIKey:       os.Getenv("SENDGRID_API_KEY"),
		MailSender:           getEnv("MAIL_SENDER", "no-reply@clairvoyant.local"),

		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          getEnv("S3_BUCKET", "uploads"),
		S3UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),

		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "clairvoyant.events"),

		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         getEnvInt("LOGIN_BURST", 5),

		ContentFile:   os.Getenv("CONTENT_FILE"),
		SeedDemoUser:  getEnvBool("SEED_DEMO_USER", true),
		MetricsEnable: getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	if c.AnalysisDelay < 0 {
		errs = append(errs, errors.New("ANALYSIS_DELAY must not be negative"))
	}
	return errors.Join(errs...)
}

// StorageEnabled reports whether uploads should be kept in object storage.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != ""
}

// MessagingEnabled reports whether analysis events should be published.
func (c *Config) MessagingEnabled() bool {
	return c.RabbitURL != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
