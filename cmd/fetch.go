package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/app"
	"github.com/JakeFAU/pricefetch/internal/config"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

const shutdownTimeout = 10 * time.Second

type fetchFlags struct {
	mode     string
	poolSize int
}

// newFetchCmd creates the 'fetch' subcommand.
func newFetchCmd() *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch TERM[:QUANTITY]...",
		Short: "Search every configured shop for each term",
		Long: `Runs every query against every configured shop and writes the records
as they arrive. QUANTITY caps the records per shop and defaults to 4.

In stream mode each shop gets one worker that runs the queries in order.
In pool mode every (shop, query) pair is an independent task on a pool of
--pool-size goroutines.`,
		Example: `  pricefetch fetch "205/55 r16:10" "225/45 r17"
  pricefetch fetch --mode pool --pool-size 8 "195/65 r15"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, flags, args)
		},
	}
	cmd.Flags().StringVar(&flags.mode, "mode", "", "orchestration mode: stream or pool (overrides config)")
	cmd.Flags().IntVar(&flags.poolSize, "pool-size", 0, "goroutines in pool mode (overrides config)")
	return cmd
}

func runFetch(cmd *cobra.Command, flags fetchFlags, args []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	queries, err := parseQueries(args)
	if err != nil {
		return err
	}

	cfg := e.cfg
	if flags.mode != "" {
		cfg.Orchestrator.Mode = flags.mode
	}
	if cmd.Flags().Changed("pool-size") {
		cfg.Orchestrator.PoolSize = flags.poolSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return errors.New("no sources configured")
	}

	a, err := newApp(cmd.Context(), cfg, app.Options{Logger: e.logger, Out: cmd.OutOrStdout()})
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
		defer cancel()
		if cerr := a.Close(ctx); cerr != nil {
			e.logger.Warn("Failed to close application", zap.Error(cerr))
		}
	}()

	start := time.Now()
	sum, err := a.Run(cmd.Context(), queries)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("fetch: %w", err)
	}
	e.logger.Info("Fetch finished",
		zap.String("mode", modeName(cfg)),
		zap.Int("queries", len(queries)),
		zap.Int("records", sum.Records),
		zap.Int("batches", sum.Batches),
		zap.Int("empty_results", sum.Empty),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// parseQueries turns "TERM[:QUANTITY]" arguments into queries. Whatever
// follows the last colon is the quantity and must be digits.
func parseQueries(args []string) ([]crawler.Query, error) {
	out := make([]crawler.Query, 0, len(args))
	for _, arg := range args {
		term, quantity := arg, ""
		if i := strings.LastIndexByte(arg, ':'); i >= 0 {
			term, quantity = arg[:i], arg[i+1:]
		}
		q, err := crawler.ParseQuery(term, quantity)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", arg, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func modeName(cfg config.Config) string {
	if cfg.Orchestrator.Mode == config.ModePool {
		return fmt.Sprintf("%s(%d)", config.ModePool, cfg.Orchestrator.PoolSize)
	}
	return config.ModeStream
}
