// Package process owns single OS process handles: spawning with process
// group attributes, line-oriented output capture, exit observation, and
// PID-targeted termination with SIGKILL escalation.
package process

import (
	"bufio"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is a point-in-time copy of a handle's state.
type Status struct {
	Name          string
	Running       bool
	PID           int
	StartedAt     time.Time
	StoppedAt     time.Time
	ExitErr       error
	StopRequested bool
}

// StartOptions configures output handling for a spawn.
type StartOptions struct {
	// OnLine receives every line of stdout/stderr; stream is "stdout" or
	// "stderr". May be nil.
	OnLine func(stream, line string)
	// Stdout/Stderr receive raw captured output (rotating files). Closed by
	// the monitor after the process exits. May be nil.
	Stdout io.WriteCloser
	Stderr io.WriteCloser
	// OnExit runs once after the process has been reaped. May be nil.
	OnExit func(err error)
}

// Proc is one process handle. A Proc is reusable: after the process exits
// the same Proc can spawn a new one. All mutation happens under the
// internal mutex; callers coordinate start/stop ordering themselves.
type Proc struct {
	mu       sync.Mutex
	name     string
	cmd      *exec.Cmd
	status   Status
	stopping bool
	waitDone chan struct{} // closed by the monitor when Wait returns
}

func New(name string) *Proc {
	return &Proc{name: name, status: Status{Name: name}}
}

// Start spawns cmd in its own process group and attaches the output
// scanners and the exit monitor. The returned error is the spawn error;
// post-spawn exits are delivered through opts.OnExit.
func (p *Proc) Start(cmd *exec.Cmd, opts StartOptions) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var outPipe, errPipe io.ReadCloser
	var err error
	if opts.OnLine != nil || opts.Stdout != nil {
		if outPipe, err = cmd.StdoutPipe(); err != nil {
			return err
		}
	}
	if opts.OnLine != nil || opts.Stderr != nil {
		if errPipe, err = cmd.StderrPipe(); err != nil {
			return err
		}
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.stopping = false
	p.status = Status{
		Name:      p.name,
		Running:   true,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	wd := p.waitDone
	p.mu.Unlock()

	var scanners sync.WaitGroup
	scan := func(r io.ReadCloser, w io.WriteCloser, stream string) {
		defer scanners.Done()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if w != nil {
				_, _ = w.Write(append([]byte(line), '\n'))
			}
			if opts.OnLine != nil {
				opts.OnLine(stream, line)
			}
		}
	}
	if outPipe != nil {
		scanners.Add(1)
		go scan(outPipe, opts.Stdout, "stdout")
	}
	if errPipe != nil {
		scanners.Add(1)
		go scan(errPipe, opts.Stderr, "stderr")
	}

	go func() {
		// Pipes must be drained before Wait reaps the child.
		scanners.Wait()
		err := cmd.Wait()
		if opts.Stdout != nil {
			_ = opts.Stdout.Close()
		}
		if opts.Stderr != nil {
			_ = opts.Stderr.Close()
		}
		p.mu.Lock()
		p.status.Running = false
		p.status.StoppedAt = time.Now()
		p.status.ExitErr = err
		p.mu.Unlock()
		close(wd)
		if opts.OnExit != nil {
			opts.OnExit(err)
		}
	}()
	return nil
}

// Alive reports whether the spawned process is still running.
func (p *Proc) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Running
}

// PID returns the last spawned PID, or 0 if never started.
func (p *Proc) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.PID
}

// Snapshot returns a copy of the current status.
func (p *Proc) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.StopRequested = p.stopping
	return s
}

// StopRequested reports whether Stop has been called for the current run.
func (p *Proc) StopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

// Done returns a channel closed once the current process has been reaped,
// or nil if nothing was ever started.
func (p *Proc) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitDone
}

// Stop terminates the process group by PID: SIGTERM first, then SIGKILL if
// the process has not exited within wait. It blocks until the monitor has
// reaped the child (or a short grace period after SIGKILL elapses) and is
// a no-op when nothing is running.
func (p *Proc) Stop(wait time.Duration) error {
	p.mu.Lock()
	if !p.status.Running || p.cmd == nil || p.cmd.Process == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	pid := p.cmd.Process.Pid
	wd := p.waitDone
	p.mu.Unlock()

	// Signal the whole group so FastCGI / database children go down with
	// their parent. Targeting by PID, never by executable name, keeps
	// unrelated instances of the same binary untouched.
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case <-wd:
	case <-time.After(wait):
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		select {
		case <-wd:
		case <-time.After(2 * time.Second):
			// best effort; monitor will reap eventually
		}
	}
	p.mu.Lock()
	err := p.status.ExitErr
	p.mu.Unlock()
	return err
}

// Kill force-terminates the process group immediately.
func (p *Proc) Kill() error {
	p.mu.Lock()
	if !p.status.Running || p.cmd == nil || p.cmd.Process == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	pid := p.cmd.Process.Pid
	wd := p.waitDone
	p.mu.Unlock()

	_ = syscall.Kill(-pid, syscall.SIGKILL)
	select {
	case <-wd:
	case <-time.After(2 * time.Second):
	}
	return nil
}
