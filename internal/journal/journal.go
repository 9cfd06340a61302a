// Package journal persists the engine's lifecycle history: status
// transitions and emitted notifications. Health snapshots are deliberately
// not journaled; they are transient per-tick state.
package journal

import (
	"context"
	"time"
)

type EntryType string

const (
	EntryTransition   EntryType = "transition"
	EntryNotification EntryType = "notification"
)

// Entry is one journaled lifecycle event. Transition entries fill
// FromStatus/ToStatus; notification entries fill NoteType/Title/Body.
type Entry struct {
	ID         int64
	OccurredAt time.Time
	Type       EntryType
	Kind       string
	FromStatus string
	ToStatus   string
	NoteType   string
	Title      string
	Body       string
}

// Journal is the persistence interface. Implementations must be safe for
// concurrent use; the supervisor appends from multiple goroutines.
type Journal interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
