package orchestrator

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
	"github.com/JakeFAU/pricefetch/pkg/progress"
)

var errFetch = errors.New("fetch failed")

// fakeSource yields the records returned by fn, then fn's error if any.
type fakeSource struct {
	name  string
	fn    func(ctx context.Context, q crawler.Query) ([]crawler.Record, error)
	delay time.Duration
	calls atomic.Int32
	// inflight tracks concurrent Fetch iterations across sources sharing it.
	inflight *concurrency
}

func newSource(name string, fn func(ctx context.Context, q crawler.Query) ([]crawler.Record, error)) *fakeSource {
	return &fakeSource{name: name, fn: fn}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, q crawler.Query) iter.Seq2[crawler.Record, error] {
	return func(yield func(crawler.Record, error) bool) {
		f.calls.Add(1)
		if f.inflight != nil {
			f.inflight.enter()
			defer f.inflight.leave()
		}
		recs, err := f.fn(ctx, q)
		for _, rec := range recs {
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

// loginSource is a fakeSource that must authenticate first.
type loginSource struct {
	*fakeSource
	loginErr   error
	loginPanic any
	logins     atomic.Int32
}

func (l *loginSource) Login(context.Context) error {
	l.logins.Add(1)
	if l.loginPanic != nil {
		panic(l.loginPanic)
	}
	return l.loginErr
}

type concurrency struct {
	cur atomic.Int32
	max atomic.Int32
}

func (c *concurrency) enter() {
	n := c.cur.Add(1)
	for {
		m := c.max.Load()
		if n <= m || c.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (c *concurrency) leave() { c.cur.Add(-1) }

// recordingEmitter captures progress events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) count(stages ...progress.Stage) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, evt := range e.events {
		for _, s := range stages {
			if evt.Stage == s {
				n++
			}
		}
	}
	return n
}

func rec(kv ...any) crawler.Record {
	out := crawler.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func collect(seq iter.Seq[[]crawler.Record]) [][]crawler.Record {
	var batches [][]crawler.Record
	for batch := range seq {
		batches = append(batches, batch)
	}
	return batches
}

func flatten(batches [][]crawler.Record) []crawler.Record {
	var out []crawler.Record
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func q(term string, quantity int) crawler.Query {
	return crawler.Query{Term: term, Quantity: quantity}
}
