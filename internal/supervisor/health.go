package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/webstackd/webstackd/internal/journal"
	"github.com/webstackd/webstackd/internal/metrics"
	"github.com/webstackd/webstackd/internal/notify"
	"github.com/webstackd/webstackd/internal/service"
)

// CheckOnce runs one health sweep: all kinds are probed concurrently, the
// results are folded into a single consistent snapshot, and the notification
// gate judges each kind's transition. The snapshot is published as one event
// so subscribers never observe a half-updated view.
func (s *Supervisor) CheckOnce() []service.HealthRecord {
	kinds := service.Kinds()
	records := make([]service.HealthRecord, len(kinds))

	s.mu.RLock()
	statuses := make(map[service.Kind]service.Status, len(kinds))
	lastErrs := make(map[service.Kind]string, len(kinds))
	for _, k := range kinds {
		statuses[k] = s.status[k]
		lastErrs[k] = s.lastErr[k]
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind service.Kind) {
			defer wg.Done()
			records[i] = s.probeOne(kind, statuses[kind], lastErrs[kind])
		}(i, kind)
	}
	wg.Wait()

	// Fold the sweep into the shared records and collect per-kind
	// transitions for the gate under one lock acquisition.
	trs := make([]notify.Transition, 0, len(kinds))
	s.mu.Lock()
	for i, k := range kinds {
		prev := s.health[k]
		s.health[k] = records[i]
		trs = append(trs, notify.Transition{
			Prev:          prev,
			Cur:           records[i],
			StartedAt:     s.started[k],
			StopRequested: s.procs[k].StopRequested(),
		})
	}
	s.mu.Unlock()

	s.bus.PublishHealth(records)

	for _, tr := range trs {
		s.gateMu.Lock()
		n, ok := s.gate.Evaluate(tr)
		s.gateMu.Unlock()
		if !ok {
			continue
		}
		s.bus.PublishNotification(n)
		metrics.IncNotification(string(n.Kind), string(n.Type))
		s.journalNotification(n)
		s.log.Info("notification emitted", "kind", n.Kind, "type", n.Type, "title", n.Title)
	}
	return records
}

// probeOne checks one kind. A kind without a live process handle is not
// probed: it is reported unhealthy with its lifecycle status unchanged, and
// without a probe error (nothing was attempted).
func (s *Supervisor) probeOne(kind service.Kind, status service.Status, lastErr string) service.HealthRecord {
	rec := service.HealthRecord{Kind: kind, Status: status, CheckedAt: time.Now()}
	proc := s.procs[kind]
	if proc == nil || !proc.Alive() {
		if status == service.StatusError {
			rec.Err = lastErr
		}
		metrics.IncHealthCheck(kind.String(), false)
		return rec
	}

	s.mu.RLock()
	prober := s.probers[kind]
	s.mu.RUnlock()

	t0 := time.Now()
	res := prober.Check(context.Background())
	metrics.ObserveProbeDuration(kind.String(), time.Since(t0).Seconds())

	rec.Healthy = res.Healthy
	if !res.Healthy {
		rec.Err = res.Detail
	}
	metrics.IncHealthCheck(kind.String(), res.Healthy)
	return rec
}

func (s *Supervisor) journalTransition(kind service.Kind, from, to service.Status) {
	s.mu.RLock()
	j := s.jrnl
	s.mu.RUnlock()
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := j.Append(ctx, journal.Entry{
		Type:       journal.EntryTransition,
		Kind:       kind.String(),
		FromStatus: from.String(),
		ToStatus:   to.String(),
	})
	if err != nil {
		s.log.Debug("journal append failed", "err", err)
	}
}

func (s *Supervisor) journalNotification(n notify.Notification) {
	s.mu.RLock()
	j := s.jrnl
	s.mu.RUnlock()
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := j.Append(ctx, journal.Entry{
		OccurredAt: n.At,
		Type:       journal.EntryNotification,
		Kind:       string(n.Kind),
		NoteType:   string(n.Type),
		Title:      n.Title,
		Body:       n.Body,
	})
	if err != nil {
		s.log.Debug("journal append failed", "err", err)
	}
}
