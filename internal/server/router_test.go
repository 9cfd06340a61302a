package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webstackd/webstackd/internal/config"
	"github.com/webstackd/webstackd/internal/journal"
	"github.com/webstackd/webstackd/internal/journal/sqlite"
	"github.com/webstackd/webstackd/internal/service"
	"github.com/webstackd/webstackd/internal/supervisor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
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
	s := supervisor.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Shutdown)
	return s
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestStatusEndpoint(t *testing.T) {
	sup := newTestSupervisor(t)
	ts := httptest.NewServer(NewRouter(sup, nil, "").Handler())
	defer ts.Close()

	var all []supervisor.StatusInfo
	if code := getJSON(t, ts.URL+"/status", &all); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(all))
	}
	for _, st := range all {
		if st.Status != service.StatusStopped {
			t.Errorf("%s: expected stopped, got %s", st.Kind, st.Status)
		}
	}

	var one supervisor.StatusInfo
	if code := getJSON(t, ts.URL+"/status?kind=db", &one); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if one.Kind != service.KindDatabase {
		t.Fatalf("alias db resolved to %s", one.Kind)
	}

	if code := getJSON(t, ts.URL+"/status?kind=bogus", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", code)
	}
}

func TestStartStopEndpoints(t *testing.T) {
	sup := newTestSupervisor(t)
	ts := httptest.NewServer(NewRouter(sup, nil, "").Handler())
	defer ts.Close()

	if code := postStatus(t, ts.URL+"/start"); code != http.StatusBadRequest {
		t.Fatalf("start without kind: %d", code)
	}
	if code := postStatus(t, ts.URL+"/start?kind=database"); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}
	st, err := sup.Status(service.KindDatabase)
	if err != nil || st.Status != service.StatusRunning {
		t.Fatalf("after start: %+v %v", st, err)
	}
	if code := postStatus(t, ts.URL+"/stop?kind=database"); code != http.StatusOK {
		t.Fatalf("stop: %d", code)
	}
	st, _ = sup.Status(service.KindDatabase)
	if st.Status != service.StatusStopped {
		t.Fatalf("after stop: %s", st.Status)
	}
}

func TestStartAllStopAllEndpoints(t *testing.T) {
	sup := newTestSupervisor(t)
	ts := httptest.NewServer(NewRouter(sup, nil, "/api").Handler())
	defer ts.Close()

	if code := postStatus(t, ts.URL+"/api/start-all"); code != http.StatusOK {
		t.Fatalf("start-all: %d", code)
	}
	for _, k := range service.Kinds() {
		st, _ := sup.Status(k)
		if st.Status != service.StatusRunning {
			t.Fatalf("%s not running after start-all: %s", k, st.Status)
		}
	}
	if code := postStatus(t, ts.URL+"/api/stop-all"); code != http.StatusOK {
		t.Fatalf("stop-all: %d", code)
	}
	for _, k := range service.Kinds() {
		st, _ := sup.Status(k)
		if st.Status != service.StatusStopped {
			t.Fatalf("%s not stopped after stop-all: %s", k, st.Status)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	sup := newTestSupervisor(t)
	ts := httptest.NewServer(NewRouter(sup, nil, "").Handler())
	defer ts.Close()

	sup.CheckOnce()
	var recs []service.HealthRecord
	if code := getJSON(t, ts.URL+"/health", &recs); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestJournalEndpoint(t *testing.T) {
	sup := newTestSupervisor(t)

	// without a journal the endpoint is 404
	ts := httptest.NewServer(NewRouter(sup, nil, "").Handler())
	if code := getJSON(t, ts.URL+"/journal", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 without journal, got %d", code)
	}
	ts.Close()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := db.Append(ctx, journal.Entry{
		Type: journal.EntryTransition, Kind: "database",
		FromStatus: "stopped", ToStatus: "starting",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	ts = httptest.NewServer(NewRouter(sup, db, "").Handler())
	defer ts.Close()
	var entries []journal.Entry
	if code := getJSON(t, ts.URL+"/journal?limit=5", &entries); code != http.StatusOK {
		t.Fatalf("journal: %d", code)
	}
	if len(entries) != 1 || entries[0].ToStatus != "starting" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if code := getJSON(t, ts.URL+"/journal?limit=-1", nil); code != http.StatusBadRequest {
		t.Fatal("negative limit must be rejected")
	}
}

func TestGenerateConfigEndpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		WebServer: config.WebServerConfig{
			Binary: "sleep", Args: []string{"30"}, Port: 8080,
			ConfigPath: filepath.Join(dir, "httpd.conf"),
		},
		ScriptRuntime:  config.RuntimeConfig{Binary: "sleep", Port: 9000},
		Database:       config.DatabaseConfig{Binary: "sleep", Port: 3306},
		DocumentRoot:   dir,
		HealthInterval: time.Second,
		StartStagger:   10 * time.Millisecond,
		StopWait:       time.Second,
	}
	sup := supervisor.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(sup.Shutdown)
	ts := httptest.NewServer(NewRouter(sup, nil, "").Handler())
	defer ts.Close()

	if code := postStatus(t, ts.URL+"/config/generate"); code != http.StatusOK {
		t.Fatalf("generate: %d", code)
	}
	if _, err := os.Stat(cfg.WebServer.ConfigPath); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api/": "/api",
		" /v1 ": "/v1",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Errorf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
