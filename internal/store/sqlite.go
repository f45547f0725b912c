package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-enricher/internal/model"
)

// SQLiteStore implements LeadStore using modernc.org/sqlite. It mirrors the
// Postgres semantics, with json_patch standing in for the JSONB merge.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

var sqliteMigrations = []migration{
	{version: 1, sql: `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outreach_schedules (
	id            TEXT PRIMARY KEY,
	lead_id       TEXT NOT NULL REFERENCES leads(id),
	channel       TEXT,
	scheduled_for DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS activity_logs (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	kind       TEXT NOT NULL,
	detail     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_outreach_schedules_lead_id ON outreach_schedules(lead_id);
CREATE INDEX IF NOT EXISTS idx_activity_logs_lead_id ON activity_logs(lead_id);
`},
	{version: 2, sql: `
CREATE INDEX IF NOT EXISTS idx_leads_type ON leads (json_extract(data, '$.type'));
CREATE INDEX IF NOT EXISTS idx_leads_owner_id ON leads (json_extract(data, '$.owner_id'));
`},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
)`); err != nil {
		return eris.Wrap(err, "sqlite: create schema_version")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return eris.Wrap(err, "sqlite: read schema version")
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return eris.Wrapf(err, "sqlite: migration %d", m.version)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version)
			return eris.Wrapf(err, "sqlite: record migration %d", m.version)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) GetLeads(ctx context.Context, ids []string) ([]model.LeadRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM leads WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get leads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LeadRecord
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l, err := decodeLead(id, []byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, update model.LeadUpdate) error {
	patch, err := json.Marshal(update)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal update")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET data = json_patch(data, ?), updated_at = datetime('now') WHERE id = ?`,
		string(patch), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	return checkRowsAffected(res, "update", id)
}

func (s *SQLiteStore) DeleteLeadCascade(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM outreach_schedules WHERE lead_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete outreach schedules for %s", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM activity_logs WHERE lead_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete activity logs for %s", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete lead %s", id)
		}
		return checkRowsAffected(res, "delete", id)
	})
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.LeadRecord) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, data) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`,
		lead.ID, string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert lead %s", lead.ID)
}

func checkRowsAffected(res sql.Result, action, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s lead %s", action, id)
	}
	return nil
}
