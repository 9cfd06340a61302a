package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should no-op: %v", err)
	}
	// default registry double-registration is tolerated too
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("default register: %v", err)
	}
}

func TestHelpersRecord(t *testing.T) {
	_ = Register(prometheus.DefaultRegisterer)

	IncStart("webserver")
	IncStop("webserver")
	RecordTransition("database", "stopped", "starting")
	SetCurrentState("database", "starting", true)
	IncHealthCheck("scriptruntime", false)
	ObserveProbeDuration("scriptruntime", 0.12)
	IncNotification("database", "became_error")
	IncConfigGeneration()

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		"webstackd_service_starts_total",
		"webstackd_service_state_transitions_total",
		"webstackd_health_checks_total",
		"webstackd_notify_emitted_total",
		"webstackd_httpdconf_generations_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %s", want)
		}
	}
}
