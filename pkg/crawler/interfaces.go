package crawler

import (
	"context"
	"iter"
)

// Source fetches records for a query.
//
// Fetch returns a lazy sequence. Each element is either a record with a nil
// error, or a terminal nil record with the error that stopped the fetch.
// Records yielded before a failure are valid.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) iter.Seq2[Record, error]
}

// Session persists the state a source keeps between runs (cookies, tokens).
type Session interface {
	Dumps() ([]byte, error)
	Loads(state []byte) error
}

// Crawler is a Source whose session can be saved and restored.
type Crawler interface {
	Source
	Session
}

// Authenticator is implemented by sources that must sign in before fetching.
// Login runs once per orchestration, before the source's first query.
type Authenticator interface {
	Login(ctx context.Context) error
}

// RecordSink receives batches of records as they are produced.
type RecordSink interface {
	Write(ctx context.Context, records []Record) error
	Close() error
}
