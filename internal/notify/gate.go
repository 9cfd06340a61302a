package notify

import (
	"fmt"
	"time"

	"github.com/webstackd/webstackd/internal/service"
)

// Type classifies a health transition worth telling the operator about.
type Type string

const (
	TypeBecameError         Type = "became_error"
	TypeStoppedUnexpectedly Type = "stopped_unexpectedly"
	TypeUnhealthy           Type = "running_unhealthy"
	TypeRecovered           Type = "recovered"
)

// Policy constants. Warmup suppresses negative classifications right after a
// start while the service is still coming up; the cooldown spaces repeats of
// the same (kind, type) pair.
const (
	WarmupWindow = 15 * time.Second
	Cooldown     = 30 * time.Second
)

// Notification is a user-facing alert emitted on the outbound event stream.
type Notification struct {
	Kind  service.Kind `json:"kind"`
	Type  Type         `json:"type"`
	Title string       `json:"title"`
	Body  string       `json:"body"`
	At    time.Time    `json:"at"`
}

// Transition is everything the gate needs to judge one tick of one kind.
type Transition struct {
	Prev      service.HealthRecord
	Cur       service.HealthRecord
	StartedAt time.Time // last time a start was issued; zero if never
	// StopRequested marks an operator-initiated stop, which must not be
	// reported as an unexpected exit.
	StopRequested bool
}

type cooldownKey struct {
	kind service.Kind
	typ  Type
}

// Gate decides whether a health transition becomes a notification.
// Entries in the cooldown table are created lazily and never removed; the
// (kind, type) cardinality is fixed and small.
type Gate struct {
	now      func() time.Time
	lastSent map[cooldownKey]time.Time
}

func NewGate() *Gate {
	return &Gate{now: time.Now, lastSent: make(map[cooldownKey]time.Time)}
}

// NewGateAt builds a gate with an injected clock, for tests.
func NewGateAt(now func() time.Time) *Gate {
	return &Gate{now: now, lastSent: make(map[cooldownKey]time.Time)}
}

// Classify maps a transition to a notification type. The empty string means
// no user-visible event happened.
func Classify(tr Transition) Type {
	prev, cur := tr.Prev, tr.Cur
	if cur.Status == service.StatusRunning && cur.Healthy {
		wasNegative := prev.Status == service.StatusError ||
			prev.Status == service.StatusStopped ||
			(prev.Status == service.StatusRunning && !prev.Healthy)
		if wasNegative {
			return TypeRecovered
		}
		return ""
	}
	if cur.Status == service.StatusError && prev.Status != service.StatusError {
		return TypeBecameError
	}
	if cur.Status == service.StatusStopped && prev.Status == service.StatusRunning && !tr.StopRequested {
		return TypeStoppedUnexpectedly
	}
	if cur.Status == service.StatusRunning && !cur.Healthy {
		return TypeUnhealthy
	}
	return ""
}

// Evaluate applies warmup and cooldown policy on top of Classify and returns
// the notification to emit, if any. Recovered transitions bypass both
// policies: a recovery is the inverse of a previously reported negative
// event and is always reported immediately.
func (g *Gate) Evaluate(tr Transition) (Notification, bool) {
	typ := Classify(tr)
	if typ == "" {
		return Notification{}, false
	}
	now := g.now()
	if typ == TypeBecameError || typ == TypeUnhealthy {
		if !tr.StartedAt.IsZero() && now.Sub(tr.StartedAt) < WarmupWindow {
			return Notification{}, false
		}
	}
	if typ != TypeRecovered {
		k := cooldownKey{kind: tr.Cur.Kind, typ: typ}
		if last, ok := g.lastSent[k]; ok && now.Sub(last) < Cooldown {
			return Notification{}, false
		}
		g.lastSent[k] = now
	}
	return render(tr.Cur, typ, now), true
}

func render(rec service.HealthRecord, typ Type, now time.Time) Notification {
	n := Notification{Kind: rec.Kind, Type: typ, At: now}
	switch typ {
	case TypeBecameError:
		n.Title = fmt.Sprintf("%s failed to start", rec.Kind)
		n.Body = rec.Err
		if n.Body == "" {
			n.Body = "service entered error state"
		}
	case TypeStoppedUnexpectedly:
		n.Title = fmt.Sprintf("%s stopped unexpectedly", rec.Kind)
		n.Body = "the process exited without a stop request"
	case TypeUnhealthy:
		n.Title = fmt.Sprintf("%s is not responding", rec.Kind)
		n.Body = rec.Err
		if n.Body == "" {
			n.Body = "health probe failed"
		}
	case TypeRecovered:
		n.Title = fmt.Sprintf("%s recovered", rec.Kind)
		n.Body = "service is running and healthy again"
	}
	return n
}
