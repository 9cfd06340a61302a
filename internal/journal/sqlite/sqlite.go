package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/webstackd/webstackd/internal/journal"
)

// DB implements journal.Journal on SQLite (modernc.org/sqlite, CGO-free).
// The DSN is a filesystem path; ":memory:" gives an in-memory journal.
type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout smooths over short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_journal(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TIMESTAMP NOT NULL,
			entry_type TEXT NOT NULL,
			kind TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL DEFAULT '',
			note_type TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_journal_kind ON lifecycle_journal(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_journal_at ON lifecycle_journal(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Append(ctx context.Context, e journal.Entry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_journal(occurred_at, entry_type, kind, from_status, to_status, note_type, title, body)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), e.Kind, e.FromStatus, e.ToStatus, e.NoteType, e.Title, e.Body)
	return err
}

func (s *DB) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, entry_type, kind, from_status, to_status, note_type, title, body
		FROM lifecycle_journal ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []journal.Entry
	for rows.Next() {
		var e journal.Entry
		var typ string
		if err := rows.Scan(&e.ID, &e.OccurredAt, &typ, &e.Kind, &e.FromStatus, &e.ToStatus, &e.NoteType, &e.Title, &e.Body); err != nil {
			return nil, err
		}
		e.Type = journal.EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *DB) Close() error { return s.db.Close() }
