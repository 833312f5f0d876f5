package orchestrator

import (
	"github.com/google/uuid"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

// WorkerID identifies one fetch worker within a run.
type WorkerID uuid.UUID

func (id WorkerID) String() string {
	return uuid.UUID(id).String()
}

type entryKind uint8

const (
	entryData entryKind = iota + 1
	entryDone
)

// entry is a result queue element: either a record or the completion marker
// of the worker identified by worker.
type entry struct {
	kind   entryKind
	record crawler.Record
	worker WorkerID
}

func dataEntry(rec crawler.Record) entry {
	return entry{kind: entryData, record: rec}
}

func doneEntry(id WorkerID) entry {
	return entry{kind: entryDone, worker: id}
}
