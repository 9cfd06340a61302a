package service

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the three managed services. The set is closed:
// webstackd supervises exactly one web server, one script runtime (FastCGI)
// and one database server.
type Kind string

const (
	KindWebServer     Kind = "webserver"
	KindScriptRuntime Kind = "scriptruntime"
	KindDatabase      Kind = "database"
)

// Kinds returns all managed kinds in dependency order: the database first,
// then the script runtime, then the web server that fronts both.
func Kinds() []Kind {
	return []Kind{KindDatabase, KindScriptRuntime, KindWebServer}
}

func (k Kind) String() string { return string(k) }

// ParseKind maps a user-supplied name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webserver", "web", "httpd", "apache":
		return KindWebServer, nil
	case "scriptruntime", "runtime", "php", "fcgi":
		return KindScriptRuntime, nil
	case "database", "db", "mysql", "mariadb":
		return KindDatabase, nil
	default:
		return "", fmt.Errorf("unknown service kind: %q", s)
	}
}

// Status is the lifecycle state of a managed service.
// Transitions: Stopped -> Starting -> Running -> Stopping -> Stopped.
// Any state may move to Error on spawn/bootstrap failure; Error is terminal
// until an explicit start re-enters Starting.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

func (s Status) String() string { return string(s) }

// CanTransition reports whether moving from s to next is a legal step of the
// lifecycle state machine.
func (s Status) CanTransition(next Status) bool {
	if next == StatusError {
		return true
	}
	switch s {
	case StatusStopped:
		return next == StatusStarting
	case StatusStarting:
		return next == StatusRunning || next == StatusStopped
	case StatusRunning:
		return next == StatusStopping || next == StatusStopped
	case StatusStopping:
		return next == StatusStopped
	case StatusError:
		return next == StatusStarting
	}
	return false
}

// HealthRecord is the per-kind result of the most recent health sweep.
// One record exists per Kind for the whole daemon run; it is overwritten on
// every tick and read (never mutated) by UI-facing consumers.
type HealthRecord struct {
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Err       string    `json:"error,omitempty"`
}

// VHostRoute maps a local domain to a document root. Routes are owned by the
// configuration layer; the config generator only reads a snapshot.
type VHostRoute struct {
	ID             string `json:"id" mapstructure:"id"`
	DisplayName    string `json:"display_name" mapstructure:"display_name"`
	Domain         string `json:"domain" mapstructure:"domain"`
	DocumentRoot   string `json:"document_root" mapstructure:"document_root"`
	RuntimeVersion string `json:"runtime_version,omitempty" mapstructure:"runtime_version"`
	// RuntimePort, when non-zero, routes this vhost's scripts to a dedicated
	// FastCGI port instead of the stack-wide one.
	RuntimePort int `json:"runtime_port,omitempty" mapstructure:"runtime_port"`
}

// ValidateRoutes checks the defensive invariant that domains are unique
// across the active route set. The config layer enforces this too; the
// generator re-checks before writing a config the web server would reject.
func ValidateRoutes(routes []VHostRoute) error {
	seen := make(map[string]string, len(routes))
	for _, r := range routes {
		d := strings.ToLower(strings.TrimSpace(r.Domain))
		if d == "" {
			return fmt.Errorf("route %s: empty domain", r.ID)
		}
		if prev, dup := seen[d]; dup {
			return fmt.Errorf("duplicate domain %q (routes %s and %s)", r.Domain, prev, r.ID)
		}
		if strings.TrimSpace(r.DocumentRoot) == "" {
			return fmt.Errorf("route %s (%s): empty document root", r.ID, r.Domain)
		}
		seen[d] = r.ID
	}
	return nil
}
