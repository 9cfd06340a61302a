// Package supervisor is the engine core: it owns the lifecycle state machine
// of the three managed services, spawns and terminates their processes,
// sweeps their health on a fixed interval, and feeds the outbound event
// stream. One handler goroutine per kind serializes start/stop so concurrent
// requests can never double-spawn a service.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/webstackd/webstackd/internal/config"
	"github.com/webstackd/webstackd/internal/events"
	"github.com/webstackd/webstackd/internal/httpdconf"
	"github.com/webstackd/webstackd/internal/journal"
	"github.com/webstackd/webstackd/internal/metrics"
	"github.com/webstackd/webstackd/internal/notify"
	"github.com/webstackd/webstackd/internal/probe"
	"github.com/webstackd/webstackd/internal/process"
	"github.com/webstackd/webstackd/internal/service"
)

// startSettle is how long a freshly spawned process must stay up before the
// start is judged successful and the service enters Running.
const startSettle = 250 * time.Millisecond

// StatusInfo is the externally consumable view of one service's lifecycle.
type StatusInfo struct {
	Kind      service.Kind   `json:"kind"`
	Status    service.Status `json:"status"`
	PID       int            `json:"pid,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	StoppedAt time.Time      `json:"stopped_at"`
	Err       string         `json:"error,omitempty"`
}

// Supervisor manages the fixed set of services defined by the configuration.
type Supervisor struct {
	cfg  *config.Config
	log  *slog.Logger
	bus  *events.Bus
	gate *notify.Gate

	mu      sync.RWMutex
	status  map[service.Kind]service.Status
	procs   map[service.Kind]*process.Proc
	probers map[service.Kind]probe.Prober
	started map[service.Kind]time.Time // last accepted start request
	health  map[service.Kind]service.HealthRecord
	lastErr map[service.Kind]string
	jrnl    journal.Journal

	gateMu     sync.Mutex
	handlers   map[service.Kind]*handler
	cancel     context.CancelFunc
	healthStop chan struct{}
}

// New builds a Supervisor and launches its per-kind handler goroutines.
// Health sweeping starts separately via StartHealthLoop.
func New(cfg *config.Config, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		bus:      events.NewBus(),
		gate:     notify.NewGate(),
		status:   make(map[service.Kind]service.Status),
		procs:    make(map[service.Kind]*process.Proc),
		probers:  make(map[service.Kind]probe.Prober),
		started:  make(map[service.Kind]time.Time),
		health:   make(map[service.Kind]service.HealthRecord),
		lastErr:  make(map[service.Kind]string),
		handlers: make(map[service.Kind]*handler),
	}
	s.probers[service.KindWebServer] = probe.HTTPProbe{Port: cfg.WebServer.Port}
	s.probers[service.KindScriptRuntime] = probe.TCPProbe{Port: cfg.ScriptRuntime.Port}
	s.probers[service.KindDatabase] = probe.HandshakeProbe{Port: cfg.Database.Port}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, kind := range service.Kinds() {
		k := kind
		s.status[k] = service.StatusStopped
		s.procs[k] = process.New(k.String())
		s.health[k] = service.HealthRecord{Kind: k, Status: service.StatusStopped}
		h := newHandler(k,
			func() error { return s.startNow(k) },
			func(wait time.Duration) error { return s.stopNow(k, wait) },
		)
		s.handlers[k] = h
		go h.run(ctx)
	}
	return s
}

// SetJournal attaches a lifecycle journal and ensures its schema. Transitions
// and emitted notifications are appended; health sweeps are not persisted.
func (s *Supervisor) SetJournal(j journal.Journal) error {
	if j != nil {
		if err := j.EnsureSchema(context.Background()); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.jrnl = j
	s.mu.Unlock()
	return nil
}

// Events exposes the outbound event bus.
func (s *Supervisor) Events() *events.Bus { return s.bus }

// Subscribe attaches a new event stream consumer.
func (s *Supervisor) Subscribe() (<-chan events.Event, func()) { return s.bus.Subscribe() }

// Start requests a start for one kind. The request is serialized through the
// kind's handler; starting an already Starting/Running service is a no-op.
func (s *Supervisor) Start(kind service.Kind) error {
	h := s.handlers[kind]
	if h == nil {
		return fmt.Errorf("unknown service kind: %s", kind)
	}
	reply := make(chan error, 1)
	h.ctrl <- CtrlMsg{Type: CtrlStart, Reply: reply}
	return <-reply
}

// Stop requests a stop for one kind; stopping a non-running service is a
// no-op.
func (s *Supervisor) Stop(kind service.Kind) error {
	h := s.handlers[kind]
	if h == nil {
		return fmt.Errorf("unknown service kind: %s", kind)
	}
	reply := make(chan error, 1)
	h.ctrl <- CtrlMsg{Type: CtrlStop, Wait: s.cfg.StopWait, Reply: reply}
	return <-reply
}

// StartAll starts every service in dependency order (database, runtime, web
// server) with a stagger between spawns. A failed start does not abort the
// rest; all failures are joined into the returned error.
func (s *Supervisor) StartAll() error {
	var errs []error
	kinds := service.Kinds()
	for i, k := range kinds {
		if err := s.Start(k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		if i < len(kinds)-1 {
			time.Sleep(s.cfg.StartStagger)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops all services concurrently.
func (s *Supervisor) StopAll() error {
	kinds := service.Kinds()
	errCh := make(chan error, len(kinds))
	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(k service.Kind) {
			defer wg.Done()
			if err := s.Stop(k); err != nil {
				errCh <- fmt.Errorf("%s: %w", k, err)
			}
		}(k)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GenerateConfig renders the web server configuration from the current route
// set and writes it to the configured path. Called automatically before every
// web server start and on demand after route changes.
func (s *Supervisor) GenerateConfig() error {
	in := httpdconf.Input{
		ListenPort:   s.cfg.WebServer.Port,
		RuntimeDir:   s.cfg.ScriptRuntime.Dir,
		RuntimePort:  s.cfg.ScriptRuntime.Port,
		DocumentRoot: s.cfg.DocumentRoot,
		Routes:       s.cfg.Routes,
	}
	if err := httpdconf.WriteFile(s.cfg.WebServer.ConfigPath, in); err != nil {
		return fmt.Errorf("generate web server config: %w", err)
	}
	metrics.IncConfigGeneration()
	s.log.Info("web server config generated",
		"path", s.cfg.WebServer.ConfigPath, "routes", len(s.cfg.Routes))
	return nil
}

// Status returns the lifecycle view for one kind.
func (s *Supervisor) Status(kind service.Kind) (StatusInfo, error) {
	if s.handlers[kind] == nil {
		return StatusInfo{}, fmt.Errorf("unknown service kind: %s", kind)
	}
	return s.statusInfo(kind), nil
}

// StatusAll returns lifecycle views for every kind in dependency order.
func (s *Supervisor) StatusAll() []StatusInfo {
	out := make([]StatusInfo, 0, len(s.handlers))
	for _, k := range service.Kinds() {
		out = append(out, s.statusInfo(k))
	}
	return out
}

func (s *Supervisor) statusInfo(kind service.Kind) StatusInfo {
	ps := s.procs[kind].Snapshot()
	s.mu.RLock()
	st := s.status[kind]
	le := s.lastErr[kind]
	s.mu.RUnlock()
	info := StatusInfo{
		Kind:      kind,
		Status:    st,
		StartedAt: ps.StartedAt,
		StoppedAt: ps.StoppedAt,
	}
	if ps.Running {
		info.PID = ps.PID
	}
	if st == service.StatusError {
		info.Err = le
	}
	return info
}

// Health returns the records of the most recent sweep, one per kind, in
// dependency order.
func (s *Supervisor) Health() []service.HealthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]service.HealthRecord, 0, len(s.health))
	for _, k := range service.Kinds() {
		out = append(out, s.health[k])
	}
	return out
}

// StartHealthLoop begins periodic health sweeps at the configured interval.
func (s *Supervisor) StartHealthLoop() {
	s.mu.Lock()
	if s.healthStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.healthStop = stop
	s.mu.Unlock()
	go func() {
		t := time.NewTicker(s.cfg.HealthInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.CheckOnce()
			case <-stop:
				return
			}
		}
	}()
}

// StopHealthLoop halts the periodic sweep if running.
func (s *Supervisor) StopHealthLoop() {
	s.mu.Lock()
	ch := s.healthStop
	s.healthStop = nil
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Shutdown stops the health loop, terminates all managed processes through
// their handlers, and closes the event bus.
func (s *Supervisor) Shutdown() {
	s.StopHealthLoop()
	waitFor := s.cfg.StopWait + 2*time.Second
	var wg sync.WaitGroup
	for _, h := range s.handlers {
		reply := make(chan error, 1)
		select {
		case h.ctrl <- CtrlMsg{Type: CtrlShutdown, Wait: s.cfg.StopWait, Reply: reply}:
		default:
			// channel full; context cancel below unblocks the run loop
		}
		wg.Add(1)
		go func(r <-chan error) {
			defer wg.Done()
			select {
			case <-r:
			case <-time.After(waitFor):
			}
		}(reply)
	}
	s.cancel()
	wg.Wait()
	s.bus.Close()
}

// startNow performs one start attempt. Runs only on the kind's handler
// goroutine, so it never races another start or stop of the same kind.
func (s *Supervisor) startNow(kind service.Kind) error {
	s.mu.RLock()
	cur := s.status[kind]
	s.mu.RUnlock()
	if cur == service.StatusStarting || cur == service.StatusRunning {
		s.log.Info("start ignored; service already active", "kind", kind, "status", cur)
		return nil
	}

	s.setStatus(kind, service.StatusStarting)
	s.mu.Lock()
	s.started[kind] = time.Now()
	delete(s.lastErr, kind)
	s.mu.Unlock()

	if err := s.prepare(kind); err != nil {
		return s.failStart(kind, err)
	}
	cmd, err := s.buildCommand(kind)
	if err != nil {
		return s.failStart(kind, err)
	}
	outW, errW, err := s.cfg.Log.Writers(kind.String())
	if err != nil {
		return s.failStart(kind, fmt.Errorf("open log writers: %w", err))
	}

	proc := s.procs[kind]
	opts := process.StartOptions{
		Stdout: outW,
		Stderr: errW,
		OnLine: func(stream, line string) {
			if !isBenign(line) {
				s.bus.PublishLog(kind, stream, line)
			}
		},
		OnExit: func(exitErr error) { s.onExit(kind, exitErr) },
	}
	if err := proc.Start(cmd, opts); err != nil {
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
		return s.failStart(kind, fmt.Errorf("spawn: %w", err))
	}

	// The process must outlive the settle window; a binary that dies
	// immediately (bad config, port clash) is a failed start, not a crash.
	select {
	case <-proc.Done():
		err := fmt.Errorf("exited during startup: %v", proc.Snapshot().ExitErr)
		return s.failStart(kind, err)
	case <-time.After(startSettle):
	}

	s.setStatus(kind, service.StatusRunning)
	metrics.IncStart(kind.String())
	s.log.Info("service started", "kind", kind, "pid", proc.PID())
	return nil
}

// stopNow performs one stop attempt on the kind's handler goroutine.
func (s *Supervisor) stopNow(kind service.Kind, wait time.Duration) error {
	s.mu.RLock()
	cur := s.status[kind]
	s.mu.RUnlock()
	if cur != service.StatusRunning {
		s.log.Debug("stop ignored; service not running", "kind", kind, "status", cur)
		return nil
	}
	if wait <= 0 {
		wait = s.cfg.StopWait
	}
	s.setStatus(kind, service.StatusStopping)
	_ = s.procs[kind].Stop(wait)
	s.setStatus(kind, service.StatusStopped)
	metrics.IncStop(kind.String())
	s.log.Info("service stopped", "kind", kind)
	return nil
}

// onExit runs from the process monitor when a managed process is reaped.
// Operator stops own their transition in stopNow; only an exit during
// Running is recorded here.
func (s *Supervisor) onExit(kind service.Kind, exitErr error) {
	s.mu.RLock()
	cur := s.status[kind]
	s.mu.RUnlock()
	if cur != service.StatusRunning {
		return
	}
	s.log.Warn("service exited unexpectedly", "kind", kind, "err", exitErr)
	s.setStatus(kind, service.StatusStopped)
}

// prepare runs per-kind work that must succeed before the spawn: the web
// server gets a freshly generated config, the database gets its data
// directory bootstrapped on first run.
func (s *Supervisor) prepare(kind service.Kind) error {
	switch kind {
	case service.KindWebServer:
		return s.GenerateConfig()
	case service.KindDatabase:
		return s.bootstrapDatabase()
	}
	return nil
}

// bootstrapDatabase initializes the data directory once, synchronously,
// before the first database start. A failed bootstrap fails the start.
func (s *Supervisor) bootstrapDatabase() error {
	db := s.cfg.Database
	if db.DataDir == "" || db.InitBinary == "" {
		return nil
	}
	if ents, err := os.ReadDir(db.DataDir); err == nil && len(ents) > 0 {
		return nil
	}
	if err := os.MkdirAll(db.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, db.InitBinary, db.InitArgs...)
	if db.WorkDir != "" {
		cmd.Dir = db.WorkDir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("data directory bootstrap: %w: %s", err, tail(out))
	}
	s.log.Info("database data directory initialized", "dir", db.DataDir)
	return nil
}

func (s *Supervisor) buildCommand(kind service.Kind) (*exec.Cmd, error) {
	var bin, workdir string
	var args []string
	switch kind {
	case service.KindWebServer:
		bin, args, workdir = s.cfg.WebServer.Binary, s.cfg.WebServer.Args, s.cfg.WebServer.WorkDir
	case service.KindScriptRuntime:
		bin, args, workdir = s.cfg.ScriptRuntime.Binary, s.cfg.ScriptRuntime.Args, s.cfg.ScriptRuntime.WorkDir
	case service.KindDatabase:
		bin, args, workdir = s.cfg.Database.Binary, s.cfg.Database.Args, s.cfg.Database.WorkDir
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("executable not found: %w", err)
	}
	cmd := exec.Command(path, args...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	return cmd, nil
}

func (s *Supervisor) failStart(kind service.Kind, err error) error {
	s.mu.Lock()
	s.lastErr[kind] = err.Error()
	s.mu.Unlock()
	s.setStatus(kind, service.StatusError)
	s.log.Error("service start failed", "kind", kind, "err", err)
	return err
}

// setStatus applies one state-machine transition and fans it out to metrics,
// the event stream, and the journal.
func (s *Supervisor) setStatus(kind service.Kind, to service.Status) {
	s.mu.Lock()
	from := s.status[kind]
	if from == to {
		s.mu.Unlock()
		return
	}
	if !from.CanTransition(to) {
		s.log.Warn("forcing lifecycle transition", "kind", kind, "from", from, "to", to)
	}
	s.status[kind] = to
	s.mu.Unlock()

	metrics.RecordTransition(kind.String(), from.String(), to.String())
	for _, st := range []service.Status{
		service.StatusStopped, service.StatusStarting, service.StatusRunning,
		service.StatusStopping, service.StatusError,
	} {
		metrics.SetCurrentState(kind.String(), st.String(), st == to)
	}
	s.bus.PublishStatus(kind, from, to)
	s.journalTransition(kind, from, to)
}

func tail(b []byte) string {
	const limit = 512
	s := string(b)
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
