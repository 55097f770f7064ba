package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/classroom/app"
	"github.com/upb/classroom/config"
	"github.com/upb/classroom/internal/observability"
)

// rootOptions holds flags shared by every subcommand
type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "classroom-api",
		Short: "Classroom identity and session service",
		Long: `classroom-api verifies identity assertions from the trusted provider,
maps them onto provisioned accounts and issues session tokens.

Operators can also provision accounts and mint tokens directly.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMintCmd(opts),
		newProvisionCmd(opts),
		newRolesCmd(opts),
	)
	return cmd
}

// bootstrap loads configuration, builds the logger and wires dependencies
func bootstrap(ctx context.Context, opts *rootOptions) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Observability.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := observability.NewLogger(level, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.String("identity_issuer", cfg.Identity.Issuer),
		zap.String("session_issuer", cfg.Session.Issuer),
		zap.Duration("default_ttl", cfg.Session.DefaultTTL),
		zap.Duration("max_ttl", cfg.Session.MaxTTL))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}
