package factory

import (
	"errors"
	"strings"

	"github.com/webstackd/webstackd/internal/journal"
	pg "github.com/webstackd/webstackd/internal/journal/postgres"
	sq "github.com/webstackd/webstackd/internal/journal/sqlite"
)

// NewFromDSN selects a journal backend from the DSN.
// Supported:
//   - postgres: DSN starting with "postgres://" or "postgresql://"
//   - sqlite:   "sqlite://<path>" or a bare filesystem path
func NewFromDSN(dsn string) (journal.Journal, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty journal DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(d[len("sqlite://"):])
	}
	return sq.New(d)
}
