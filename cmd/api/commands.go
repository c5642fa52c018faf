package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blackfong-core/app"
	"blackfong-core/app/observability"
	"blackfong-core/app/services"
	"blackfong-core/storage/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func loadRuntime() (*app.Config, *zap.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the backup scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	application, err := app.Bootstrap(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to bootstrap application: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	server := newHTTPServer(cfg, application.Router)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return application.BackupService.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newHTTPServer sets no write timeout. A command run response stays open
// through the per-name lock and pool waits; CommandTimeout bounds only the
// process itself.
func newHTTPServer(cfg *app.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Create today's backup if missing and rotate old ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			application, err := app.Bootstrap(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			result, err := application.BackupService.EnsureDaily(cmd.Context())
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no database to back up")
				return nil
			}
			for _, perr := range result.PruneErrors {
				fmt.Fprintln(cmd.ErrOrStderr(), "prune:", perr)
			}
			return writeJSON(cmd, result)
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Classify current system health and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			application, err := app.Bootstrap(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			report, err := application.HealthService.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, report)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token signed with BLACKFONG_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("BLACKFONG_JWT_SECRET is not set")
			}
			if ttl == 0 {
				ttl = cfg.JWTTTL
			}
			token, err := services.NewJWTService(cfg.JWTSecret, ttl).GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "subject", "operator", "token subject, recorded as the requester")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to BLACKFONG_JWT_TTL)")

	token := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}
	token.AddCommand(issue)
	return token
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			store, err := sqlite.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d: %s\n", sqlite.GetSchemaVersion(), cfg.DBPath)
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
