package progress

import "context"

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines; the Hub calls them from a single goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter accepts events without blocking. *Hub implements it.
type Emitter interface {
	Emit(evt Event)
}
