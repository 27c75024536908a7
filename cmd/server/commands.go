package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/config"
	"github.com/garyjia/expense-workflow/internal/container"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/auth"
	httpapi "github.com/garyjia/expense-workflow/internal/interfaces/http"
	"github.com/garyjia/expense-workflow/pkg/database"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

const version = "1.0.0"

type rootOptions struct {
	configPath string
	envFile    string
}

// newRootCommand creates the root CLI command with all subcommands registered.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "expense-workflow",
		Short:   "Expense report approval workflow service",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file (empty for defaults and environment only)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional .env file loaded before the environment is read")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting expense workflow service",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()))

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  int64(cfg.Receipts.MaxBytes),
		Mode:            cfg.Server.Mode,
	}, httpapi.Services{
		Reports:  services.Reports,
		Queries:  services.Queries,
		Receipts: services.Receipts,
		Exports:  services.Exports,
	}, c.Authenticator(), c.ServiceLogger())

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Server exited successfully")
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			bundle, err := container.ProvideDatabase(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer bundle.DB.Close()

			applied, err := database.NewMigrator(bundle.DB, logger).AppliedVersions()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at %d migrations\n", cfg.Database.Path, len(applied))
			return nil
		},
	}
}

type tokenOptions struct {
	id    string
	role  string
	name  string
	email string
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	tok := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}

			actor, err := tok.actor()
			if err != nil {
				return err
			}

			authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, nil)
			token, err := authenticator.Issue(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tok.id, "id", "", "actor id (required)")
	cmd.Flags().StringVar(&tok.role, "role", "", "actor role, e.g. Student or \"School Chair\" (required)")
	cmd.Flags().StringVar(&tok.name, "name", "", "display name")
	cmd.Flags().StringVar(&tok.email, "email", "", "notification email")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func (t *tokenOptions) actor() (access.Actor, error) {
	if err := utils.ValidateActorID(t.id); err != nil {
		return access.Actor{}, err
	}
	role := workflow.Role(t.role)
	if !role.IsValid() {
		return access.Actor{}, fmt.Errorf("unknown role %q", t.role)
	}
	if t.email != "" {
		if err := utils.ValidateEmail(t.email); err != nil {
			return access.Actor{}, err
		}
	}
	return access.Actor{ID: t.id, Role: role, Name: t.name, Email: t.email}, nil
}
