package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/queue/memory"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
	"github.com/JakeFAU/pricefetch/pkg/progress"
)

// workerHandle is the driver's view of a running worker. err is written by
// the worker before done is closed and read by the driver only after.
type workerHandle struct {
	id     WorkerID
	source crawler.Source
	done   chan struct{}
	err    error
}

// join waits for the worker goroutine to exit and returns its fatal error.
func (h *workerHandle) join() error {
	<-h.done
	return h.err
}

// spawn starts a worker that runs every query against src, pushing records
// and finally its completion marker onto q.
func (r *run) spawn(ctx context.Context, q *memory.Queue[entry], src crawler.Source, queries []crawler.Query) (*workerHandle, error) {
	id, err := r.o.mint()
	if err != nil {
		return nil, err
	}
	h := &workerHandle{
		id:     WorkerID(id),
		source: src,
		done:   make(chan struct{}),
	}
	go r.work(ctx, q, h, queries)
	return h, nil
}

func (r *run) work(ctx context.Context, q *memory.Queue[entry], h *workerHandle, queries []crawler.Query) {
	// Deferred in this order so the marker is pushed after every record and
	// the handle is released only after the marker.
	defer close(h.done)
	defer q.Push(doneEntry(h.id))

	start := time.Now()
	name := sourceName(h.source)
	defer func() {
		if p := recover(); p != nil {
			h.err = fmt.Errorf("worker panic: %v", p)
		}
		evt := progress.Event{WorkerID: h.id, Source: name, Dur: time.Since(start), Stage: progress.StageWorkerDone}
		if h.err != nil {
			r.failedWorkers.Add(1)
			evt.Stage = progress.StageWorkerError
			evt.Note = h.err.Error()
		}
		r.emit(evt)
	}()

	r.emit(progress.Event{WorkerID: h.id, Source: name, Stage: progress.StageWorkerStart})
	if auth, ok := h.source.(crawler.Authenticator); ok {
		if err := auth.Login(ctx); err != nil {
			h.err = fmt.Errorf("login %s: %w", name, err)
			return
		}
	}
	push := func(rec crawler.Record) { q.Push(dataEntry(rec)) }
	for _, query := range queries {
		r.fetchQuery(ctx, h.id, h.source, query, push)
	}
}

// fetchQuery runs one (source, query) work item, handing each record to emit
// as soon as the source produces it. A failure, including a panic inside the
// source, ends the item early; records already emitted stay emitted.
func (r *run) fetchQuery(
	ctx context.Context,
	worker WorkerID,
	src crawler.Source,
	query crawler.Query,
	emit func(crawler.Record),
) (n int64, err error) {
	start := time.Now()
	name := sourceName(src)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("fetch panic: %v", p)
		}
		evt := progress.Event{
			WorkerID: worker,
			Source:   name,
			Term:     query.Term,
			Records:  n,
			Dur:      time.Since(start),
			Stage:    progress.StageFetchDone,
		}
		if err != nil {
			r.failedQueries.Add(1)
			evt.Stage = progress.StageFetchError
			evt.Note = err.Error()
			r.logger.Error("fetch failed",
				zap.String("source", name),
				zap.String("term", query.Term),
				zap.Int("quantity", query.Quantity),
				zap.Int64("records", n),
				zap.Error(err),
			)
		}
		r.emit(evt)
	}()

	r.logger.Debug("fetching", zap.String("source", name), zap.String("term", query.Term), zap.Int("quantity", query.Quantity))
	for rec, ferr := range src.Fetch(ctx, query) {
		if ferr != nil {
			return n, ferr
		}
		emit(rec)
		n++
		r.records.Add(1)
	}
	return n, nil
}

// sourceName tolerates sources whose Name panics.
func sourceName(src crawler.Source) (name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", src)
		}
	}()
	return src.Name()
}
