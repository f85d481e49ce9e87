// Package events carries lifecycle notifications from the core components to
// observers (logs, the HTTP event stream, tests). Publishing never blocks the
// component that emits the event.
package events

import "time"

// Event represents a lifecycle event.
// Minimal and stable: name + subject (variant or message id) and optional fields.
type Event struct {
	Name    string         `json:"name"`
	Subject string         `json:"subject,omitempty"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(Event) {}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}

// New stamps an event with the current time.
func New(name, subject string, fields map[string]any) Event {
	return Event{Name: name, Subject: subject, Time: time.Now(), Fields: fields}
}

// Multi publishes to every non-nil publisher in order.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
