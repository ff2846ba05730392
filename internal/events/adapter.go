package events

import (
	"time"

	"github.com/tphakala/okn-go/internal/session"
)

// SessionPublisher adapts the EventBus to session.Publisher.
type SessionPublisher struct {
	bus *EventBus
	now func() time.Time
}

// NewSessionPublisher creates a publisher feeding bus.
func NewSessionPublisher(bus *EventBus) *SessionPublisher {
	return &SessionPublisher{bus: bus, now: time.Now}
}

// Publish forwards a snapshot without blocking.
func (p *SessionPublisher) Publish(kind session.ChangeKind, s session.Snapshot) {
	p.bus.TryPublish(StateEvent{Kind: kind, Snapshot: s, Timestamp: p.now()})
}
