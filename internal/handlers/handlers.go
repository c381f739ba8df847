package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/content"
	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/logging"
	"github.com/Muthahireen/clairvoyant/internal/metrics"
	"github.com/Muthahireen/clairvoyant/internal/repository"
	"github.com/Muthahireen/clairvoyant/internal/session"
	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

// MaxUploadSize is the default limit for uploaded scans.
const MaxUploadSize = 10 << 20

// AccountService is the credential store used by the auth and profile routes.
type AccountService interface {
	Register(ctx context.Context, username, email, password string) (*repository.User, error)
	Login(ctx context.Context, username, password string) (*usecase.LoginResult, error)
	Logout(ctx context.Context, userID, sessionID string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	GetProfile(ctx context.Context, userID string) (*repository.User, error)
	UpdateProfile(ctx context.Context, userID, displayName, email string) (*repository.User, error)
}

// AnalysisService runs and reads analyses.
type AnalysisService interface {
	AnalyzeImage(ctx context.Context, userID, fileName string, data []byte) (*repository.Analysis, error)
	AnalyzeManual(ctx context.Context, userID string, features inference.Features) (*repository.Analysis, error)
	GetAnalysis(ctx context.Context, userID, requestID string) (*repository.Analysis, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]*repository.Analysis, error)
	GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error)
	GetInsights(ctx context.Context, userID string, days int) (*usecase.Insights, error)
}

// PreferenceStore keeps per-session display preferences.
type PreferenceStore interface {
	SetDarkMode(ctx context.Context, sessionID string, enabled bool) (*session.Session, error)
}

// Dependencies groups everything RegisterRoutes wires.
type Dependencies struct {
	Accounts    AccountService
	Analyses    AnalysisService
	Preferences PreferenceStore
	Content     *content.Content
	Auth        gin.HandlerFunc
	// LoginLimiter guards POST /auth/login. Nil disables rate limiting.
	LoginLimiter  gin.HandlerFunc
	Metrics       *metrics.Metrics
	MaxUploadSize int64
	Logger        *zap.Logger
}

type handler struct {
	accounts      AccountService
	analyses      AnalysisService
	preferences   PreferenceStore
	content       *content.Content
	maxUploadSize int64
	logger        *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	registerValidators()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		accounts:      deps.Accounts,
		analyses:      deps.Analyses,
		preferences:   deps.Preferences,
		content:       deps.Content,
		maxUploadSize: deps.MaxUploadSize,
		logger:        logger.Named("http"),
	}
	if h.maxUploadSize <= 0 {
		h.maxUploadSize = MaxUploadSize
	}

	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/auth")
	if deps.LoginLimiter != nil {
		public.POST("/login", deps.LoginLimiter, h.login)
	} else {
		public.POST("/login", h.login)
	}
	public.POST("/signup", h.signup)
	public.POST("/password-reset", h.requestPasswordReset)
	public.POST("/password-reset/confirm", h.confirmPasswordReset)

	private := router.Group("/", deps.Auth)
	private.POST("/auth/logout", h.logout)
	private.GET("/me", h.me)
	private.PUT("/me/profile", h.updateProfile)
	private.PUT("/me/preferences", h.updatePreferences)

	private.POST("/analyses", h.createAnalysis)
	private.GET("/analyses", h.listAnalyses)
	private.GET("/analyses/:id", h.getAnalysis)
	private.GET("/analyses/:id/duplicates", h.getDuplicates)
	private.GET("/analyses/:id/prescription", h.getPrescription)
	private.POST("/predictions/manual", h.manualPrediction)
	private.GET("/insights", h.insights)

	private.GET("/content/symptoms", h.symptoms)
	private.GET("/content/hospitals", h.hospitals)
	private.GET("/assistant/greeting", h.greeting)
	private.POST("/assistant/voice", h.voice)
}

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func (h *handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": usecase.ErrInvalidCredentials.Error()})
	case errors.Is(err, usecase.ErrAccountExists):
		c.JSON(http.StatusConflict, gin.H{"error": usecase.ErrAccountExists.Error()})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrResetTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": usecase.ErrResetTokenInvalid.Error()})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, inference.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type: upload a PDF, JPG or PNG"})
	case errors.Is(err, inference.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": inference.ErrImageTooLarge.Error()})
	case errors.Is(err, inference.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": inference.ErrInvalidImage.Error()})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("operation", logging.OperationOf(err)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
