package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

// SQLiteStore implements leads.Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ leads.Store = (*SQLiteStore)(nil)

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
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	identity_key TEXT NOT NULL UNIQUE,
	company      TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT 'general',
	size         TEXT NOT NULL DEFAULT 'micro',
	location     TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	need         TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL DEFAULT 0,
	grade        TEXT NOT NULL DEFAULT '',
	rating       REAL NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	place_id     TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	sector       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS discoveries (
	place_id     TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	rating       REAL NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	sector       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	found_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaign_assignments (
	campaign_id   TEXT NOT NULL,
	campaign_name TEXT NOT NULL,
	identity_key  TEXT NOT NULL,
	place_id      TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	assigned_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (campaign_id, identity_key)
);

CREATE TABLE IF NOT EXISTS autopilot_runs (
	id           TEXT PRIMARY KEY,
	sector       TEXT NOT NULL,
	city         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	payload      TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_autopilot_runs_started_at ON autopilot_runs(started_at);
`

// Migrate creates the lead tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertLeads inserts new identities in one transaction.
func (s *SQLiteStore) InsertLeads(ctx context.Context, records []model.LeadRecord) (int, error) {
	query := `INSERT OR IGNORE INTO leads (` + strings.Join(leadColumns, ", ") + `) VALUES (` +
		placeholders(len(leadColumns)) + `)`
	rows := make([][]any, len(records))
	for i, l := range records {
		rows[i] = leadRow(l)
	}
	n, err := s.insertIgnore(ctx, query, rows)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert leads")
	}
	return n, nil
}

// ListLeads returns leads matching f, newest first.
func (s *SQLiteStore) ListLeads(ctx context.Context, f leads.LeadFilter) ([]model.LeadRecord, error) {
	query := `SELECT ` + strings.Join(leadColumns, ", ") + ` FROM leads WHERE 1=1`
	var args []any

	if len(f.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(f.IDs)) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Sector != "" {
		query += ` AND sector = ?`
		args = append(args, f.Sector)
	}
	if f.City != "" {
		query += ` AND COALESCE(NULLIF(city, ''), location) = ?`
		args = append(args, f.City)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(f.Limit))
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	out := []model.LeadRecord{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

// UpdateLeadStatus sets the funnel status of a lead.
func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return eris.Wrap(err, "sqlite: update lead status")
	}
	return checkRowsAffected(res, "lead", id)
}

// CountLeadsByStatus counts leads per funnel status.
func (s *SQLiteStore) CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads by status")
	}
	defer rows.Close()

	out := make(map[model.LeadStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		out[model.LeadStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count leads by status iterate")
}

// LeadBreakdown groups lead counts on dim.
func (s *SQLiteStore) LeadBreakdown(ctx context.Context, dim leads.Dimension) (map[string]model.Breakdown, error) {
	expr, err := breakdownExpr(dim)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS key, count(*),
		COALESCE(SUM(CASE WHEN status = 'converted' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM leads GROUP BY key`, expr)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: breakdown by %s", dim)
	}
	defer rows.Close()

	out := make(map[string]model.Breakdown)
	for rows.Next() {
		var (
			key string
			b   model.Breakdown
		)
		if err := rows.Scan(&key, &b.Total, &b.Converted, &b.Rejected); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan breakdown")
		}
		out[key] = b
	}
	return out, eris.Wrap(rows.Err(), "sqlite: breakdown iterate")
}

// RecordDiscoveries adds candidates to the found ledger.
func (s *SQLiteStore) RecordDiscoveries(ctx context.Context, sector, city string, cands []model.Candidate) (int, error) {
	query := `INSERT OR IGNORE INTO discoveries (` + strings.Join(discoveryColumns, ", ") + `) VALUES (` +
		placeholders(len(discoveryColumns)) + `)`
	now := s.now().UTC()
	rows := make([][]any, 0, len(cands))
	for _, c := range cands {
		if c.PlaceID == "" {
			continue
		}
		rows = append(rows, discoveryRow(sector, city, c, now))
	}
	n, err := s.insertIgnore(ctx, query, rows)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: record discoveries")
	}
	return n, nil
}

// CountDiscoveries returns the size of the found ledger.
func (s *SQLiteStore) CountDiscoveries(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM discoveries`, "discoveries")
}

// RecordAssignments stores campaign assignments, ignoring repeats.
func (s *SQLiteStore) RecordAssignments(ctx context.Context, assignments []model.CampaignAssignment) (int, error) {
	query := `INSERT OR IGNORE INTO campaign_assignments (` + strings.Join(assignmentColumns, ", ") +
		`) VALUES (` + placeholders(len(assignmentColumns)) + `)`
	rows := make([][]any, len(assignments))
	for i, a := range assignments {
		rows[i] = assignmentRow(a)
	}
	n, err := s.insertIgnore(ctx, query, rows)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: record assignments")
	}
	return n, nil
}

// CountAssignments returns how many leads were handed to campaigns.
func (s *SQLiteStore) CountAssignments(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM campaign_assignments`, "assignments")
}

// SaveRun writes a finished auto-pilot run. Runs are written once.
func (s *SQLiteStore) SaveRun(ctx context.Context, run model.AutoPilotRun) error {
	payload, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO autopilot_runs (id, sector, city, outcome, payload, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Sector, run.City, string(run.Outcome), string(payload), run.StartedAt.UTC(), run.CompletedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save run")
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.AutoPilotRun, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM autopilot_runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(leads.ErrNotFound, "run %s", id)
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return decodeRun([]byte(payload))
}

// ListRuns returns the newest runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.AutoPilotRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM autopilot_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	runs := []model.AutoPilotRun{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r, err := decodeRun([]byte(payload))
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// insertIgnore runs query once per row inside one transaction and returns
// how many rows were actually inserted.
func (s *SQLiteStore) insertIgnore(ctx context.Context, query string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "prepare")
	}
	defer stmt.Close() //nolint:errcheck

	created := 0
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, eris.Wrap(err, "exec")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "rows affected")
		}
		created += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "commit tx")
	}
	return created, nil
}

func (s *SQLiteStore) count(ctx context.Context, query, what string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", what)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
