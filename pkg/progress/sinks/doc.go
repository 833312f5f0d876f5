// Package sinks contains progress.Sink implementations: a zap-backed log sink
// and a Prometheus sink exporting orchestration counters.
package sinks
