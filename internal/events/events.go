// Package events carries the engine's single outbound stream. Everything
// the UI/shell collaborator needs to observe — status changes, filtered
// process log lines, per-tick health snapshots, and gated notifications —
// arrives as one tagged Event variant.
package events

import (
	"sync"
	"time"

	"github.com/webstackd/webstackd/internal/notify"
	"github.com/webstackd/webstackd/internal/service"
)

type Type string

const (
	TypeStatusChanged  Type = "status_changed"
	TypeLogLine        Type = "log_line"
	TypeHealthSnapshot Type = "health_snapshot"
	TypeNotification   Type = "notification"
)

// StatusChange reports one state-machine transition for one kind.
type StatusChange struct {
	Kind service.Kind   `json:"kind"`
	From service.Status `json:"from"`
	To   service.Status `json:"to"`
}

// LogLine is one line read from a managed process's stdout or stderr,
// after the benign-line filter.
type LogLine struct {
	Kind   service.Kind `json:"kind"`
	Stream string       `json:"stream"` // "stdout" or "stderr"
	Line   string       `json:"line"`
}

// HealthSnapshot is the consistent per-tick view of all kinds at once.
type HealthSnapshot struct {
	Records []service.HealthRecord `json:"records"`
}

// Event is a tagged union; exactly one payload field is non-nil, selected
// by Type.
type Event struct {
	Type         Type                 `json:"type"`
	At           time.Time            `json:"at"`
	Status       *StatusChange        `json:"status,omitempty"`
	Log          *LogLine             `json:"log,omitempty"`
	Health       *HealthSnapshot      `json:"health,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that stops draining loses events rather than stalling the supervisor.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// closed on cancel or bus close.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, DefaultBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber, dropping it for any whose buffer
// is full.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) PublishStatus(kind service.Kind, from, to service.Status) {
	b.Publish(Event{Type: TypeStatusChanged, Status: &StatusChange{Kind: kind, From: from, To: to}})
}

func (b *Bus) PublishLog(kind service.Kind, stream, line string) {
	b.Publish(Event{Type: TypeLogLine, Log: &LogLine{Kind: kind, Stream: stream, Line: line}})
}

func (b *Bus) PublishHealth(records []service.HealthRecord) {
	b.Publish(Event{Type: TypeHealthSnapshot, Health: &HealthSnapshot{Records: records}})
}

func (b *Bus) PublishNotification(n notify.Notification) {
	b.Publish(Event{Type: TypeNotification, At: n.At, Notification: &n})
}
