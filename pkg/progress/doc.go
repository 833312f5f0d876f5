// Package progress carries orchestration lifecycle events from fetch workers
// to pluggable sinks (logs, Prometheus).
//
// Producers call Hub.Emit, which never blocks: events are buffered, batched
// and flushed to every sink from a single background goroutine. When the
// buffer is full events are dropped and a rate-limited warning is logged, so
// a slow sink can never stall a fetch worker.
package progress
