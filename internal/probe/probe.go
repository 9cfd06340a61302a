package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Timeouts for a single probe. Every probe bounds its own I/O so a hung
// service can never stall the sweep for the other kinds.
const (
	DefaultTimeout   = 2 * time.Second
	HandshakeTimeout = 1500 * time.Millisecond
)

// Result is the outcome of one point-in-time liveness check.
type Result struct {
	Healthy bool
	Detail  string
}

// Prober performs a single bounded liveness check against one service.
// Probers never mutate shared state; the supervisor folds results into the
// health records it owns.
type Prober interface {
	Check(ctx context.Context) Result
	Describe() string
}

// HTTPProbe issues a basic request to the web server's own port. Any
// response before the deadline counts as healthy, regardless of status code:
// a 403 or 500 still proves the server is accepting and answering requests.
type HTTPProbe struct {
	Host string
	Port int
}

func (p HTTPProbe) Describe() string { return fmt.Sprintf("http:%s:%d", p.hostname(), p.Port) }

func (p HTTPProbe) hostname() string {
	if p.Host == "" {
		return "127.0.0.1"
	}
	return p.Host
}

func (p HTTPProbe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	url := fmt.Sprintf("http://%s/", net.JoinHostPort(p.hostname(), fmt.Sprintf("%d", p.Port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Healthy: false, Detail: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Healthy: false, Detail: err.Error()}
	}
	_ = resp.Body.Close()
	return Result{Healthy: true, Detail: resp.Status}
}

// TCPProbe attempts a raw connection to the script runtime's FastCGI port.
// An established connection is enough; the FastCGI protocol has no cheap
// application-level ping.
type TCPProbe struct {
	Host string
	Port int
}

func (p TCPProbe) Describe() string { return fmt.Sprintf("tcp:%s:%d", p.hostname(), p.Port) }

func (p TCPProbe) hostname() string {
	if p.Host == "" {
		return "127.0.0.1"
	}
	return p.Host
}

func (p TCPProbe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.hostname(), fmt.Sprintf("%d", p.Port)))
	if err != nil {
		return Result{Healthy: false, Detail: err.Error()}
	}
	_ = conn.Close()
	return Result{Healthy: true, Detail: "connected"}
}

// HandshakeProbe connects to the database port and waits briefly for the
// server's initial greeting. MySQL-family servers speak first, so receiving
// any bytes proves the server is past its startup phase and not merely
// holding the listening socket open.
type HandshakeProbe struct {
	Host string
	Port int
}

func (p HandshakeProbe) Describe() string { return fmt.Sprintf("db:%s:%d", p.hostname(), p.Port) }

func (p HandshakeProbe) hostname() string {
	if p.Host == "" {
		return "127.0.0.1"
	}
	return p.Host
}

func (p HandshakeProbe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.hostname(), fmt.Sprintf("%d", p.Port)))
	if err != nil {
		return Result{Healthy: false, Detail: err.Error()}
	}
	defer func() { _ = conn.Close() }()
	deadline := time.Now().Add(HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return Result{Healthy: false, Detail: "no handshake bytes before deadline"}
	}
	return Result{Healthy: true, Detail: fmt.Sprintf("handshake %d bytes", n)}
}
