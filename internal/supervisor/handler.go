package supervisor

import (
	"context"
	"time"

	"github.com/webstackd/webstackd/internal/service"
)

// CtrlType enumerates control message kinds handled by a service handler.
type CtrlType int

const (
	CtrlStart CtrlType = iota
	CtrlStop
	CtrlShutdown
)

// CtrlMsg is a control-plane message sent to a handler. Routing every start
// and stop through the handler's channel serializes lifecycle operations per
// kind: two concurrent start requests become two ordered messages, and the
// second observes the state the first left behind.
type CtrlMsg struct {
	Type  CtrlType
	Wait  time.Duration
	Reply chan error
}

// handler owns the control path for a single service kind.
type handler struct {
	kind service.Kind
	ctrl chan CtrlMsg
	// injected lifecycle ops (no direct Supervisor dependency)
	start func() error
	stop  func(wait time.Duration) error
}

func newHandler(kind service.Kind, start func() error, stop func(time.Duration) error) *handler {
	return &handler{
		kind:  kind,
		ctrl:  make(chan CtrlMsg, 16),
		start: start,
		stop:  stop,
	}
}

func (h *handler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = h.stop(3 * time.Second)
			// drain queued messages so callers are not left waiting
			for {
				select {
				case msg := <-h.ctrl:
					if msg.Reply != nil {
						msg.Reply <- ctx.Err()
					}
				default:
					return
				}
			}
		case msg := <-h.ctrl:
			var err error
			switch msg.Type {
			case CtrlStart:
				err = h.start()
			case CtrlStop:
				err = h.stop(msg.Wait)
			case CtrlShutdown:
				err = h.stop(msg.Wait)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				return
			}
			if msg.Reply != nil {
				msg.Reply <- err
			}
		}
	}
}
