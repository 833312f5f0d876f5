package orchestrator

import (
	"context"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/queue/memory"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

// Stream runs one worker per source, each fetching every query in order, and
// returns a lazy sequence of record batches.
//
// Queries are validated before Stream returns; an invalid query or nil source
// yields an error and nothing is started. Workers start when the sequence is
// ranged over, and every range starts a fresh run. Each yielded batch holds
// the records that arrived since the previous batch, in arrival order; empty
// batches are never yielded. The sequence ends once every worker has finished
// and the queue is drained.
//
// Breaking out of the range stops the driver but not the workers: they run
// their remaining queries in the background and their output is discarded.
// If ctx ends while the driver is waiting, the sequence ends early.
func (o *Orchestrator) Stream(
	ctx context.Context,
	sources []crawler.Source,
	queries ...crawler.Query,
) (iter.Seq[[]crawler.Record], error) {
	normalized, err := validate(sources, queries)
	if err != nil {
		return nil, err
	}
	sources = slices.Clone(sources)

	return func(yield func([]crawler.Record) bool) {
		r := o.newRun("stream")
		defer r.finish()

		q := memory.NewQueue[entry]()
		live := make(map[WorkerID]*workerHandle, len(sources))
		for _, src := range sources {
			h, err := r.spawn(ctx, q, src, normalized)
			if err != nil {
				r.failedWorkers.Add(1)
				r.logger.Error("worker not started", zap.String("source", sourceName(src)), zap.Error(err))
				continue
			}
			live[h.id] = h
		}

		for len(live) > 0 {
			entries, err := q.PopAll(ctx, true)
			if err != nil {
				r.logger.Debug("stream stopped before workers finished", zap.Int("live_workers", len(live)), zap.Error(err))
				return
			}
			batch := r.demux(entries, live)
			if len(batch) > 0 && !yield(batch) {
				return
			}
		}

		// Every worker has reported; pick up anything pushed between the
		// last blocking pop and the final marker.
		entries, err := q.PopAll(ctx, false)
		if err != nil {
			return
		}
		if batch := r.demux(entries, live); len(batch) > 0 {
			yield(batch)
		}
	}, nil
}

// demux splits drained entries into records, retiring each worker whose
// completion marker is found.
func (r *run) demux(entries []entry, live map[WorkerID]*workerHandle) []crawler.Record {
	var batch []crawler.Record
	for _, e := range entries {
		switch e.kind {
		case entryData:
			batch = append(batch, e.record)
		case entryDone:
			h, ok := live[e.worker]
			if !ok {
				r.logger.Warn("completion marker for unknown worker", zap.Stringer("worker_id", e.worker))
				continue
			}
			delete(live, e.worker)
			if err := h.join(); err != nil {
				r.logger.Error("worker failed",
					zap.String("source", sourceName(h.source)),
					zap.Stringer("worker_id", h.id),
					zap.Error(err),
				)
			}
		}
	}
	return batch
}
