package webstackd

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/webstackd/webstackd/internal/config"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func facadeConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
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
}

func TestSupervisorFacadeStartStatusStop(t *testing.T) {
	requireUnix(t)
	s := New(facadeConfig(t))
	defer s.Shutdown()

	if err := s.Start(KindDatabase); err != nil {
		t.Fatalf("start: %v", err)
	}
	st, err := s.Status(KindDatabase)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status.String() != "running" || st.PID == 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if err := s.Stop(KindDatabase); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := s.StatusAll(); len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(got))
	}
}

func TestLoadConfigFacade(t *testing.T) {
	dir := t.TempDir()
	toml := `
document_root = "` + dir + `"

[webserver]
binary = "/usr/sbin/httpd"
port = 8080
config_path = "` + filepath.Join(dir, "httpd.conf") + `"

[scriptruntime]
binary = "/usr/sbin/php-fpm"
port = 9000

[database]
binary = "/usr/sbin/mysqld"
port = 3306

[[routes]]
id = "app"
domain = "app.test"
document_root = "` + dir + `"
`
	path := filepath.Join(dir, "webstack.toml")
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WebServer.Port != 8080 || len(cfg.Routes) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HealthInterval != 5*time.Second {
		t.Fatalf("default health interval not applied: %v", cfg.HealthInterval)
	}
}

func TestParseKindFacade(t *testing.T) {
	for alias, want := range map[string]Kind{
		"apache": KindWebServer,
		"php":    KindScriptRuntime,
		"mysql":  KindDatabase,
	} {
		got, err := ParseKind(alias)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", alias, got, err, want)
		}
	}
	if _, err := ParseKind("redis"); err == nil {
		t.Error("expected error for unmanaged kind")
	}
}

func TestRegisterMetricsFacade(t *testing.T) {
	if err := RegisterMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestOpenJournalFacade(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = j.Close() }()
	s := New(facadeConfig(t))
	defer s.Shutdown()
	if err := s.SetJournal(j); err != nil {
		t.Fatalf("set journal: %v", err)
	}
}
