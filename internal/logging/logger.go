package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. Unknown levels fall back to info.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	return cfg.Build()
}

// ParseLevel maps a textual level to a zap level.
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}

// WithUser adds the authenticated subject to an operation logger.
func WithUser(logger *zap.Logger, userID string) *zap.Logger {
	if userID == "" {
		return logger
	}
	return logger.With(zap.String("user_id", userID))
}
