package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/pricefetch/pkg/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))

	run := uuid.New()
	batch := []progress.Event{
		{RunID: run, TS: time.Now(), Stage: progress.StageFetchDone, Source: "a", Term: "tire", Records: 2},
		{RunID: run, WorkerID: uuid.New(), TS: time.Now(), Stage: progress.StageFetchError, Source: "b", Term: "tire", Note: "boom"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.DebugLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["note"])
	require.Contains(t, entries[1].ContextMap(), "worker_id")
	require.NoError(t, sink.Close(context.Background()))
}
