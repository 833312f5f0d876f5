package orchestrator

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	idgen "github.com/JakeFAU/pricefetch/internal/id/uuid"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
	"github.com/JakeFAU/pricefetch/pkg/progress"
)

// ErrNilSource is returned when a nil source is passed to Stream or FanOut.
var ErrNilSource = errors.New("nil source")

// IDGenerator mints worker and run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Options configures an Orchestrator. The zero value is usable.
type Options struct {
	// Logger receives failure and lifecycle logs. Defaults to a no-op logger.
	Logger *zap.Logger
	// Events receives progress events when set.
	Events progress.Emitter
	// IDs mints identifiers. Defaults to UUIDv7.
	IDs IDGenerator
	// PoolSize bounds FanOut parallelism. Zero picks
	// min(work items, 4*GOMAXPROCS).
	PoolSize int
}

// Orchestrator runs sources concurrently. It holds no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	logger   *zap.Logger
	events   progress.Emitter
	ids      IDGenerator
	poolSize int
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := opts.IDs
	if ids == nil {
		ids = idgen.New()
	}
	return &Orchestrator{
		logger:   logger,
		events:   opts.Events,
		ids:      ids,
		poolSize: opts.PoolSize,
	}
}

func validate(sources []crawler.Source, queries []crawler.Query) ([]crawler.Query, error) {
	for i, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("source %d: %w", i, ErrNilSource)
		}
	}
	out := make([]crawler.Query, 0, len(queries))
	for i, q := range queries {
		nq, err := q.Normalize()
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out = append(out, nq)
	}
	return out, nil
}

func (o *Orchestrator) mint() (uuid.UUID, error) {
	id, err := o.ids.NewRawID()
	if err == nil {
		return id, nil
	}
	o.logger.Warn("id generator failed; falling back to random id", zap.Error(err))
	id, err = uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("mint id: %w", err)
	}
	return id, nil
}

// run holds the state of one Stream or FanOut call.
type run struct {
	o       *Orchestrator
	id      uuid.UUID
	mode    string
	started time.Time
	logger  *zap.Logger

	records       atomic.Int64
	failedQueries atomic.Int64
	failedWorkers atomic.Int64
}

func (o *Orchestrator) newRun(mode string) *run {
	id, err := o.mint()
	if err != nil {
		// Only used for correlation; a nil run id still lets the run proceed.
		o.logger.Error("mint run id", zap.Error(err))
	}
	r := &run{
		o:       o,
		id:      id,
		mode:    mode,
		started: time.Now(),
		logger:  o.logger.With(zap.Stringer("run_id", id), zap.String("mode", mode)),
	}
	r.emit(progress.Event{Stage: progress.StageRunStart})
	return r
}

func (r *run) finish() {
	dur := time.Since(r.started)
	r.logger.Info("orchestration finished",
		zap.Int64("records", r.records.Load()),
		zap.Int64("failed_queries", r.failedQueries.Load()),
		zap.Int64("failed_workers", r.failedWorkers.Load()),
		zap.Duration("dur", dur),
	)
	r.emit(progress.Event{Stage: progress.StageRunDone, Records: r.records.Load(), Dur: dur})
}

func (r *run) emit(evt progress.Event) {
	if r.o.events == nil {
		return
	}
	evt.RunID = r.id
	evt.TS = time.Now().UTC()
	r.o.events.Emit(evt)
}

func defaultPoolSize(items int) int {
	n := 4 * runtime.GOMAXPROCS(0)
	if items < n {
		n = items
	}
	return max(n, 1)
}
