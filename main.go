package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Muthahireen/clairvoyant/internal/auth"
	"github.com/Muthahireen/clairvoyant/internal/config"
	"github.com/Muthahireen/clairvoyant/internal/content"
	"github.com/Muthahireen/clairvoyant/internal/grpcclient"
	"github.com/Muthahireen/clairvoyant/internal/handlers"
	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/logging"
	"github.com/Muthahireen/clairvoyant/internal/mailer"
	"github.com/Muthahireen/clairvoyant/internal/messaging"
	"github.com/Muthahireen/clairvoyant/internal/metrics"
	"github.com/Muthahireen/clairvoyant/internal/repository"
	"github.com/Muthahireen/clairvoyant/internal/security"
	"github.com/Muthahireen/clairvoyant/internal/session"
	"github.com/Muthahireen/clairvoyant/internal/storage"
	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

// cli carries what every subcommand needs once flags and environment are read.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &cli{}
	root := &cobra.Command{
		Use:          "clairvoyant",
		Short:        "Breast cancer screening API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	root.AddCommand(serveCmd(app), migrateCmd(app), createUserCmd(app), inferenceServerCmd(app))
	return root
}

func serveCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app.cfg, app.logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := initDatabase(initCtx, cfg, logger)
	if err != nil {
		return err
	}
	redisClient, err := initRedis(initCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	classifier, closeClassifier, err := initClassifier(initCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClassifier()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAudience)
	if err != nil {
		return err
	}
	sessions := session.NewManager(session.NewRedisStore(redisClient), tokens, cfg.SessionTTL, logger)
	cache := usecase.NewRedisCache(redisClient)

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnable {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		appMetrics = metrics.New(registry)
	}

	analysisOpts := []usecase.AnalysisOption{
		usecase.WithImageLimits(inference.Limits{MaxWidth: cfg.MaxImageWidth, MaxHeight: cfg.MaxImageHeight}),
	}
	if appMetrics != nil {
		analysisOpts = append(analysisOpts, usecase.WithObserver(appMetrics))
	}
	if cfg.StorageEnabled() {
		store, err := storage.NewS3Store(initCtx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(initCtx); err != nil {
			return err
		}
		analysisOpts = append(analysisOpts, usecase.WithStorage(store))
	}
	if cfg.MessagingEnabled() {
		publisher, err := messaging.NewPublisher(initCtx, cfg.RabbitURL, cfg.RabbitExchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		analysisOpts = append(analysisOpts, usecase.WithPublisher(publisher))
	}

	var mail usecase.Mailer = mailer.NewLogMailer(logger)
	if cfg.SendGridAPIKey != "" {
		mail = mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailSender, logger)
	}

	analyses := usecase.NewAnalysisUseCase(
		repository.NewAnalysisRepository(db, logger),
		cache,
		classifier,
		logger,
		analysisOpts...,
	)
	accounts := usecase.NewAccountUseCase(
		repository.NewUserRepository(db, logger),
		sessions,
		security.NewBcryptHasher(0),
		cache,
		mail,
		usecase.AccountConfig{ResetTTL: cfg.PasswordResetTTL, ResetBaseURL: cfg.PasswordResetBaseURL},
		logger,
	)
	if appMetrics != nil {
		accounts.SetObserver(appMetrics)
	}
	if cfg.SeedDemoUser {
		if err := accounts.SeedDemoAccount(initCtx); err != nil {
			return fmt.Errorf("seed demo account: %w", err)
		}
	}

	pageContent, err := content.Load(cfg.ContentFile)
	if err != nil {
		return err
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSize

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Accounts:      accounts,
		Analyses:      analyses,
		Preferences:   sessions,
		Content:       pageContent,
		Auth:          auth.SessionMiddleware(sessions),
		LoginLimiter:  handlers.NewIPRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst).Middleware(),
		Metrics:       appMetrics,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("clairvoyant API listening", zap.String("addr", cfg.HTTPAddr))
	return serveHTTPServer(server, cfg.ShutdownTimeout, logger)
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return nil, err
	}
	if err := repository.AutoMigrate(ctx, db); err != nil {
		logger.Error("auto migrate failed", zap.Error(err))
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection failed", zap.Error(err))
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// initClassifier dials the remote classifier when one is configured and falls
// back to the in-process stub otherwise.
func initClassifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (inference.Classifier, func(), error) {
	if cfg.InferenceAddr == "" {
		logger.Info("using stub classifier", zap.Duration("delay", cfg.AnalysisDelay))
		return inference.NewStubClassifier(cfg.AnalysisDelay), func() {}, nil
	}
	classifier, conn, err := grpcclient.DialClassifier(ctx, cfg.InferenceAddr, logger)
	if err != nil {
		logger.Error("failed to connect to classifier", zap.String("addr", cfg.InferenceAddr), zap.Error(err))
		return nil, nil, err
	}
	return classifier, func() { _ = conn.Close() }, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh, stopSignals := shutdownSignals(signalCh)
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

// shutdownSignals returns signalCh when given, or a channel subscribed to SIGINT and SIGTERM.
func shutdownSignals(signalCh <-chan os.Signal) (<-chan os.Signal, func()) {
	if signalCh != nil {
		return signalCh, func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}
