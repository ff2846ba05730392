// Package events provides an asynchronous, non-blocking event bus that fans
// session state changes out to consumers such as the SSE stream, without
// ever blocking the session machine.
package events

import (
	"time"

	"github.com/tphakala/okn-go/internal/session"
)

// StateEvent is one published session snapshot.
type StateEvent struct {
	Kind      session.ChangeKind
	Snapshot  session.Snapshot
	Timestamp time.Time
}

// EventConsumer processes state events. ProcessEvent runs on the bus
// dispatcher goroutine and must return quickly.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event StateEvent) error
}

// DropRecorder is notified when an event is dropped because the buffer is full.
type DropRecorder interface {
	RecordEventDropped()
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
