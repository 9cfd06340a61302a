// Package webstackd supervises a local web development stack: one web
// server, one FastCGI script runtime, and one database server. It owns their
// lifecycle state machines, probes their health on a fixed interval, gates
// user-facing notifications, and generates the web server's virtual-host
// configuration from the active route set.
package webstackd

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	icfg "github.com/webstackd/webstackd/internal/config"
	"github.com/webstackd/webstackd/internal/events"
	"github.com/webstackd/webstackd/internal/journal"
	jfactory "github.com/webstackd/webstackd/internal/journal/factory"
	"github.com/webstackd/webstackd/internal/metrics"
	"github.com/webstackd/webstackd/internal/notify"
	iapi "github.com/webstackd/webstackd/internal/server"
	"github.com/webstackd/webstackd/internal/service"
	"github.com/webstackd/webstackd/internal/supervisor"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Kind = service.Kind

const (
	KindWebServer     = service.KindWebServer
	KindScriptRuntime = service.KindScriptRuntime
	KindDatabase      = service.KindDatabase
)

type Status = service.Status

type StatusInfo = supervisor.StatusInfo

type HealthRecord = service.HealthRecord

type VHostRoute = service.VHostRoute

type Event = events.Event

type Notification = notify.Notification

type Config = icfg.Config

type Journal = journal.Journal

// Supervisor is a thin facade over the internal engine, providing a stable
// public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

// New builds a supervisor from a validated configuration.
func New(cfg *Config) *Supervisor {
	return &Supervisor{inner: supervisor.New(cfg, nil)}
}

// LoadConfig reads and validates a TOML stack configuration.
func LoadConfig(path string) (*Config, error) { return icfg.Load(path) }

// OpenJournal selects and opens a lifecycle journal from a DSN
// (postgres://..., sqlite://path, or a bare SQLite file path).
func OpenJournal(dsn string) (Journal, error) { return jfactory.NewFromDSN(dsn) }

func (s *Supervisor) SetJournal(j Journal) error        { return s.inner.SetJournal(j) }
func (s *Supervisor) Start(kind Kind) error             { return s.inner.Start(kind) }
func (s *Supervisor) Stop(kind Kind) error              { return s.inner.Stop(kind) }
func (s *Supervisor) StartAll() error                   { return s.inner.StartAll() }
func (s *Supervisor) StopAll() error                    { return s.inner.StopAll() }
func (s *Supervisor) GenerateConfig() error             { return s.inner.GenerateConfig() }
func (s *Supervisor) Status(kind Kind) (StatusInfo, error) {
	return s.inner.Status(kind)
}
func (s *Supervisor) StatusAll() []StatusInfo           { return s.inner.StatusAll() }
func (s *Supervisor) Health() []HealthRecord            { return s.inner.Health() }
func (s *Supervisor) CheckOnce() []HealthRecord         { return s.inner.CheckOnce() }
func (s *Supervisor) StartHealthLoop()                  { s.inner.StartHealthLoop() }
func (s *Supervisor) StopHealthLoop()                   { s.inner.StopHealthLoop() }
func (s *Supervisor) Subscribe() (<-chan Event, func()) { return s.inner.Subscribe() }
func (s *Supervisor) Shutdown()                         { s.inner.Shutdown() }

// ParseKind maps a user-supplied name (including aliases like "php" or
// "mysql") to a Kind.
func ParseKind(s string) (Kind, error) { return service.ParseKind(s) }

// NewHTTPServer starts an HTTP server exposing the control API backed by the
// given supervisor. jrnl may be nil.
func NewHTTPServer(addr, basePath string, s *Supervisor, jrnl Journal) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner, jrnl)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
