package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

// Result is the outcome of one (source, query) work item in FanOut mode.
// Records is empty, never nil, when the item failed.
type Result struct {
	Source  crawler.Source
	Query   crawler.Query
	Records []crawler.Record
}

type workItem struct {
	source crawler.Source
	query  crawler.Query
	login  func() error
}

// FanOut runs every (source, query) pair as an independent work item on a
// pool of Options.PoolSize goroutines and yields one Result per item in
// completion order.
//
// Validation follows Stream. Sources implementing crawler.Authenticator log
// in once, before their first item; if login fails every item of that source
// yields an empty Result. Breaking out of the range abandons items that have
// not started; started items run to completion and their results are
// dropped.
func (o *Orchestrator) FanOut(
	ctx context.Context,
	sources []crawler.Source,
	queries ...crawler.Query,
) (iter.Seq[Result], error) {
	normalized, err := validate(sources, queries)
	if err != nil {
		return nil, err
	}
	sources = slices.Clone(sources)

	return func(yield func(Result) bool) {
		r := o.newRun("pool")
		defer r.finish()

		items := r.plan(ctx, sources, normalized)
		size := o.poolSize
		if size <= 0 {
			size = defaultPoolSize(len(items))
		}

		// stop abandons queued items; it is separate from ctx so started
		// fetches are not cancelled when the caller stops ranging.
		stop, cancel := context.WithCancel(context.Background())
		defer cancel()

		results := make(chan Result)
		go func() {
			defer close(results)
			var g errgroup.Group
			g.SetLimit(size)
			for _, it := range items {
				if stop.Err() != nil {
					break
				}
				g.Go(func() error {
					if stop.Err() != nil {
						return nil
					}
					res := r.runItem(ctx, it)
					select {
					case results <- res:
					case <-stop.Done():
					}
					return nil
				})
			}
			_ = g.Wait()
		}()

		for res := range results {
			if !yield(res) {
				return
			}
		}
	}, nil
}

// plan expands sources × queries into work items sharing one login per source.
func (r *run) plan(ctx context.Context, sources []crawler.Source, queries []crawler.Query) []workItem {
	items := make([]workItem, 0, len(sources)*len(queries))
	for _, src := range sources {
		login := func() error { return nil }
		if auth, ok := src.(crawler.Authenticator); ok {
			login = sync.OnceValue(func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("login panic: %v", p)
					}
				}()
				if err := auth.Login(ctx); err != nil {
					return fmt.Errorf("login %s: %w", sourceName(src), err)
				}
				return nil
			})
		}
		for _, q := range queries {
			items = append(items, workItem{source: src, query: q, login: login})
		}
	}
	return items
}

func (r *run) runItem(ctx context.Context, it workItem) Result {
	res := Result{Source: it.source, Query: it.query, Records: []crawler.Record{}}
	if err := it.login(); err != nil {
		r.failedQueries.Add(1)
		r.logger.Error("work item skipped",
			zap.String("source", sourceName(it.source)),
			zap.String("term", it.query.Term),
			zap.Error(err),
		)
		return res
	}

	var records []crawler.Record
	n, err := r.fetchQuery(ctx, WorkerID{}, it.source, it.query, func(rec crawler.Record) {
		records = append(records, rec)
	})
	if err != nil {
		r.records.Add(-n)
		return res
	}
	if records != nil {
		res.Records = records
	}
	return res
}
