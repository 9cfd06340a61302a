package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/webstackd/webstackd/internal/config"
	"github.com/webstackd/webstackd/internal/server"
	"github.com/webstackd/webstackd/internal/supervisor"
)

func newTestDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		WebServer: config.WebServerConfig{
			Binary: "sleep", Args: []string{"30"}, Port: 8080,
			ConfigPath: filepath.Join(dir, "httpd.conf"),
		},
		ScriptRuntime:  config.RuntimeConfig{Binary: "sleep", Args: []string{"30"}, Port: 9000},
		Database:       config.DatabaseConfig{Binary: "sleep", Args: []string{"30"}, Port: 3306},
		DocumentRoot:   dir,
		HealthInterval: time.Second,
		StartStagger:   10 * time.Millisecond,
		StopWait:       2 * time.Second,
	}
	sup := supervisor.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(sup.Shutdown)
	ts := httptest.NewServer(server.NewRouter(sup, nil, "/api").Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientRoundTrip(t *testing.T) {
	ts := newTestDaemon(t)
	c := New(Config{
		BaseURL: ts.URL + "/api",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatal("daemon should be reachable")
	}

	sts, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(sts) != 3 {
		t.Fatalf("expected 3 services, got %d", len(sts))
	}

	if err := c.Start(ctx, "database"); err != nil {
		t.Fatalf("start: %v", err)
	}
	st, err := c.StatusOf(ctx, "db")
	if err != nil {
		t.Fatalf("status of: %v", err)
	}
	if st.Status != "running" || st.PID == 0 {
		t.Fatalf("expected running database, got %+v", st)
	}

	if err := c.Stop(ctx, "database"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st, _ = c.StatusOf(ctx, "database")
	if st.Status != "stopped" {
		t.Fatalf("expected stopped, got %s", st.Status)
	}

	if err := c.Start(ctx, "bogus"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestClientHealth(t *testing.T) {
	ts := newTestDaemon(t)
	c := New(Config{BaseURL: ts.URL + "/api"})
	recs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{
		BaseURL: "http://127.0.0.1:1/api",
		Timeout: 200 * time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if c.IsReachable(context.Background()) {
		t.Fatal("expected unreachable")
	}
}
