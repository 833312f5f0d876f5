// Package cmd defines and implements the CLI commands for the pricefetch
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/app"
	"github.com/JakeFAU/pricefetch/internal/config"
	"github.com/JakeFAU/pricefetch/internal/logging"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what PersistentPreRunE prepares for every subcommand.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. It's a variable so tests can inject
// collaborators such as a record sink or a registry.
var newApp = func(ctx context.Context, cfg config.Config, opts app.Options) (*app.App, error) {
	return app.Build(ctx, cfg, opts)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "pricefetch",
		Short: "Fetch product prices from many shops at once.",
		Long: `pricefetch searches every configured shop for each query and streams
the normalized records to stdout as JSON lines or into Postgres.

Shops are described in the config file; sessions (cookies) are kept
between runs so logged-in shops do not sign in every time.`,
		SilenceUsage: true,

		// Config and logger are loaded here, before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newSourcesCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
