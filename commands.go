package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/grpcserver"
	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/repository"
	"github.com/Muthahireen/clairvoyant/internal/security"
	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

func migrateCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := initDatabase(cmd.Context(), app.cfg, app.logger); err != nil {
				return err
			}
			app.logger.Info("schema is up to date", zap.String("driver", app.cfg.DatabaseDriver))
			return nil
		},
	}
}

func createUserCmd(app *cli) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register an account without going through the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := initDatabase(ctx, app.cfg, app.logger)
			if err != nil {
				return err
			}

			accounts := usecase.NewAccountUseCase(
				repository.NewUserRepository(db, app.logger),
				nil,
				security.NewBcryptHasher(0),
				nil,
				nil,
				usecase.AccountConfig{},
				app.logger,
			)
			user, err := accounts.Register(ctx, username, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email address")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func inferenceServerCmd(app *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "inference-server",
		Short: "Serve the stub classifier over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.InferenceListen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runInferenceServer(ctx, addr, inference.NewStubClassifier(app.cfg.AnalysisDelay), app.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "", "gRPC listen address (default INFERENCE_LISTEN)")
	return cmd
}

func runInferenceServer(ctx context.Context, addr string, classifier inference.Classifier, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	logger.Info("classifier listening", zap.String("addr", lis.Addr().String()))
	if err := grpcserver.New(classifier, logger).Serve(ctx, lis); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
