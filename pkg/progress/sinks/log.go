package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/pkg/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Error stages are logged at warn.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.String("term", evt.Term),
			zap.Int64("records", evt.Records),
			zap.Duration("dur", evt.Dur),
		}
		if evt.WorkerID != [16]byte{} {
			fields = append(fields, zap.Stringer("worker_id", evt.WorkerUUID()))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageFetchError, progress.StageWorkerError:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Debug("progress event", fields...)
		}
	}
	return nil
}

// Close implements progress.Sink; it flushes nothing.
func (s *LogSink) Close(context.Context) error {
	return nil
}
