// Package orchestrator runs many crawler.Sources against many queries at once
// and streams their records back as they arrive.
//
// Two modes are offered:
//
// Stream starts one goroutine per source. Each worker runs every query
// against its source in order and pushes records onto a shared unbounded
// queue the moment they are produced, followed by a single completion marker.
// The caller's goroutine drains the queue, retires finished workers and
// yields batches. Records from one source keep their production order;
// batches from different sources interleave freely. Parallelism is bounded
// by the number of sources, so no source sees concurrent requests.
//
// FanOut submits every (source, query) pair to a fixed-size pool and yields
// one Result per pair in completion order. It gives finer parallelism (a
// source may serve several queries at once) and no ordering guarantees.
//
// In both modes a failing query is logged and contributes no records; it
// never stops other queries, other sources, or the run. Only query
// validation errors are returned to the caller, before any work starts.
// Nothing is retried, deduplicated or rate-limited.
package orchestrator
