package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageWorkerStart Stage = "WORKER_START"
	StageWorkerDone  Stage = "WORKER_DONE"
	StageWorkerError Stage = "WORKER_ERROR"
	StageFetchDone   Stage = "FETCH_DONE"
	StageFetchError  Stage = "FETCH_ERROR"
)

// Event captures a single orchestration milestone.
type Event struct {
	// RunID identifies one Stream or FanOut call.
	RunID [16]byte
	// WorkerID identifies the worker that emitted the event, when any.
	WorkerID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Source is the name of the source being fetched.
	Source string
	// Term is the query term for fetch events.
	Term string
	// Records counts the records produced by a fetch or a whole run.
	Records int64
	// Dur captures fetch, worker or run latency.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageWorkerStart, StageWorkerDone, StageWorkerError:
		if e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
	case StageFetchDone, StageFetchError:
		if e.Source == "" || e.Term == "" {
			return fmt.Errorf("%s requires source and term", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Records < 0 {
		return errors.New("records must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// WorkerUUID converts the binary worker ID to uuid.UUID.
func (e Event) WorkerUUID() uuid.UUID {
	return uuid.UUID(e.WorkerID)
}
