package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/pricefetch/pkg/progress"
)

// PrometheusSink exports orchestration counters. It owns its collectors and
// registers them against the supplied registry.
type PrometheusSink struct {
	runsTotal      prometheus.Counter
	runDuration    prometheus.Histogram
	workersStarted *prometheus.CounterVec
	workersDone    *prometheus.CounterVec
	workersRunning prometheus.Gauge
	queriesTotal   *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricefetch_runs_total",
			Help: "Completed orchestration runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricefetch_run_duration_seconds",
			Help:    "Wall time per orchestration run.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		workersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefetch_workers_started_total",
			Help: "Fetch workers started, by source.",
		}, []string{"source"}),
		workersDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefetch_workers_finished_total",
			Help: "Fetch workers finished, by source and result.",
		}, []string{"source", "result"}),
		workersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricefetch_workers_running",
			Help: "Fetch workers currently running.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefetch_queries_total",
			Help: "Queries attempted, by source and result.",
		}, []string{"source", "result"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefetch_records_total",
			Help: "Records produced, by source.",
		}, []string{"source"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricefetch_fetch_duration_seconds",
			Help:    "Time spent fetching one query, by source.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsTotal,
		s.runDuration,
		s.workersStarted,
		s.workersDone,
		s.workersRunning,
		s.queriesTotal,
		s.recordsTotal,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunDone:
		s.runsTotal.Inc()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageWorkerStart:
		s.workersStarted.WithLabelValues(evt.Source).Inc()
		s.workersRunning.Inc()
	case progress.StageWorkerDone:
		s.workersDone.WithLabelValues(evt.Source, "ok").Inc()
		s.workersRunning.Dec()
	case progress.StageWorkerError:
		s.workersDone.WithLabelValues(evt.Source, "error").Inc()
		s.workersRunning.Dec()
	case progress.StageFetchDone:
		s.observeFetch(evt, "ok")
	case progress.StageFetchError:
		s.observeFetch(evt, "error")
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event, result string) {
	s.queriesTotal.WithLabelValues(evt.Source, result).Inc()
	if evt.Records > 0 {
		s.recordsTotal.WithLabelValues(evt.Source).Add(float64(evt.Records))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(evt.Source).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
