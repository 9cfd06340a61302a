package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/webstackd/webstackd/internal/journal"
)

// DB implements journal.Journal on PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_journal(
			id BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
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
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Append(ctx context.Context, e journal.Entry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO lifecycle_journal(occurred_at, entry_type, kind, from_status, to_status, note_type, title, body)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8);`,
		e.OccurredAt.UTC(), string(e.Type), e.Kind, e.FromStatus, e.ToStatus, e.NoteType, e.Title, e.Body)
	return err
}

func (p *DB) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, occurred_at, entry_type, kind, from_status, to_status, note_type, title, body
		FROM lifecycle_journal ORDER BY id DESC LIMIT $1;`, limit)
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

func (p *DB) Close() error { return p.db.Close() }
