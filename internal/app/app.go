// Package app builds the long-lived services of one pricefetch run from
// configuration and drives the orchestrator into the record sink.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/api"
	"github.com/JakeFAU/pricefetch/internal/clock/system"
	"github.com/JakeFAU/pricefetch/internal/config"
	"github.com/JakeFAU/pricefetch/internal/policy/ratelimit"
	"github.com/JakeFAU/pricefetch/internal/sink"
	"github.com/JakeFAU/pricefetch/internal/sources"
	"github.com/JakeFAU/pricefetch/internal/sources/catalog"
	"github.com/JakeFAU/pricefetch/internal/storage"
	localstorage "github.com/JakeFAU/pricefetch/internal/storage/local"
	memorystorage "github.com/JakeFAU/pricefetch/internal/storage/memory"
	pgstore "github.com/JakeFAU/pricefetch/internal/storage/postgres"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
	"github.com/JakeFAU/pricefetch/pkg/orchestrator"
	"github.com/JakeFAU/pricefetch/pkg/progress"
	progresssinks "github.com/JakeFAU/pricefetch/pkg/progress/sinks"
)

// Options lets callers replace collaborators that Build would otherwise
// create from configuration.
type Options struct {
	Logger *zap.Logger
	// Out receives JSON lines when the output format is jsonl.
	Out io.Writer
	// Sink replaces the configured record sink.
	Sink crawler.RecordSink
	// Crawlers replaces the configured sources.
	Crawlers []crawler.Crawler
	// Registry collects metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
}

// App holds the services for one run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *progress.Hub
	crawlers []crawler.Crawler
	state    *sources.StateStore
	sink     crawler.RecordSink
	api      *api.Server
	orch     *orchestrator.Orchestrator
}

// Summary reports what a run produced.
type Summary struct {
	Records int
	Batches int
	Empty   int
}

// Build creates every dependency; on failure it releases what was already
// created.
func Build(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, registry: opts.Registry}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err := a.setupProgress(); err != nil {
		return nil, err
	}
	if err := a.setupSources(opts.Crawlers); err != nil {
		return nil, err
	}
	if err := a.setupState(); err != nil {
		return nil, err
	}
	if err := a.setupSink(ctx, opts); err != nil {
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		a.api, err = api.NewServer(a.registry, logger.Named("api"))
		if err != nil {
			return nil, fmt.Errorf("api init failed: %w", err)
		}
	}

	a.orch = orchestrator.New(orchestrator.Options{
		Logger:   logger.Named("orchestrator"),
		Events:   a.hub,
		PoolSize: cfg.Orchestrator.PoolSize,
	})
	return a, nil
}

func (a *App) setupProgress() error {
	prom, err := progresssinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:    a.cfg.Progress.BufferSize,
		FlushInterval: a.cfg.FlushInterval(),
		Logger:        a.logger.Named("progress"),
	}, progresssinks.NewLogSink(a.logger.Named("events")), prom)
	return nil
}

func (a *App) setupSources(injected []crawler.Crawler) error {
	if injected != nil {
		a.crawlers = injected
		return nil
	}
	limiter, err := ratelimit.New(a.cfg.HTTP.RateLimit, a.registry)
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}
	crawlers, err := sources.Build(a.cfg.Sources, catalog.Options{
		UserAgent:  a.cfg.HTTP.UserAgent,
		Timeout:    a.cfg.HTTPTimeout(),
		MaxRetries: a.cfg.HTTP.MaxRetries,
		Clock:      system.New(a.cfg.Location()),
		Limiter:    limiter,
		Logger:     a.logger.Named("source"),
	})
	if err != nil {
		return fmt.Errorf("sources init failed: %w", err)
	}
	a.crawlers = crawlers
	return nil
}

func (a *App) setupState() error {
	var blobs storage.BlobStore
	switch a.cfg.State.Backend {
	case config.StateLocal:
		local, err := localstorage.New(a.cfg.State.Local)
		if err != nil {
			return fmt.Errorf("local state store init failed: %w", err)
		}
		a.logger.Debug("local state backend", zap.String("path", a.cfg.State.Local.BaseDir))
		blobs = local
	default:
		a.logger.Debug("in-memory state backend; sessions are not kept between runs")
		blobs = memorystorage.NewBlobStore()
	}
	a.state = sources.NewStateStore(blobs, a.logger.Named("state"))
	return nil
}

func (a *App) setupSink(ctx context.Context, opts Options) error {
	if opts.Sink != nil {
		a.sink = opts.Sink
		return nil
	}
	switch a.cfg.Output.Format {
	case config.OutputPostgres:
		store, err := pgstore.NewRecordStore(ctx, pgstore.RecordStoreConfig{
			DSN:   a.cfg.Output.PostgresDSN,
			Table: a.cfg.Output.Table,
		})
		if err != nil {
			return fmt.Errorf("postgres sink init failed: %w", err)
		}
		a.sink = store
	default:
		if opts.Out == nil {
			return errors.New("jsonl output needs a writer")
		}
		a.sink = sink.NewJSONLines(opts.Out)
	}
	return nil
}

// Crawlers returns the configured sources.
func (a *App) Crawlers() []crawler.Crawler {
	return a.crawlers
}

// Run restores sessions, fetches every query from every source in the
// configured mode, writes records to the sink and saves sessions again.
// Source failures are logged and counted, not returned; Run fails only when
// the queries are invalid or the sink rejects a write.
func (a *App) Run(ctx context.Context, queries []crawler.Query) (Summary, error) {
	var wg sync.WaitGroup
	serveCtx, stopServe := context.WithCancel(ctx)
	defer func() {
		stopServe()
		wg.Wait()
	}()
	if a.api != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.api.Run(serveCtx, a.cfg.Metrics.Addr); err != nil {
				a.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		a.api.SetReady(true)
	}

	if err := a.state.RestoreAll(ctx, a.crawlers); err != nil {
		a.logger.Warn("some sessions could not be restored", zap.Error(err))
	}
	defer func() {
		// Sessions are saved even when the run is cancelled.
		if err := a.state.SaveAll(context.WithoutCancel(ctx), a.crawlers); err != nil {
			a.logger.Warn("some sessions could not be saved", zap.Error(err))
		}
	}()

	srcs := sources.AsSources(a.crawlers)
	if a.cfg.Orchestrator.Mode == config.ModePool {
		return a.runPool(ctx, srcs, queries)
	}
	return a.runStream(ctx, srcs, queries)
}

func (a *App) runStream(ctx context.Context, srcs []crawler.Source, queries []crawler.Query) (Summary, error) {
	var sum Summary
	seq, err := a.orch.Stream(ctx, srcs, queries...)
	if err != nil {
		return sum, err
	}
	for batch := range seq {
		if err := a.sink.Write(ctx, batch); err != nil {
			return sum, fmt.Errorf("write batch: %w", err)
		}
		sum.Batches++
		sum.Records += len(batch)
	}
	return sum, nil
}

func (a *App) runPool(ctx context.Context, srcs []crawler.Source, queries []crawler.Query) (Summary, error) {
	var sum Summary
	seq, err := a.orch.FanOut(ctx, srcs, queries...)
	if err != nil {
		return sum, err
	}
	for res := range seq {
		if len(res.Records) == 0 {
			sum.Empty++
			continue
		}
		if err := a.sink.Write(ctx, res.Records); err != nil {
			return sum, fmt.Errorf("write %s %q: %w", res.Source.Name(), res.Query.Term, err)
		}
		sum.Batches++
		sum.Records += len(res.Records)
	}
	return sum, nil
}

// Close flushes progress events and releases the sink.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub close: %w", err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink close: %w", err))
		}
	}
	return errors.Join(errs...)
}
