package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/db"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

// PostgresStore implements leads.Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

var _ leads.Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
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
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade        TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	place_id     TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	sector       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS discoveries (
	place_id     TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	sector       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	found_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_assignments (
	campaign_id   TEXT NOT NULL,
	campaign_name TEXT NOT NULL,
	identity_key  TEXT NOT NULL,
	place_id      TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	assigned_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (campaign_id, identity_key)
);

CREATE TABLE IF NOT EXISTS autopilot_runs (
	id           TEXT PRIMARY KEY,
	sector       TEXT NOT NULL,
	city         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	payload      JSONB NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_autopilot_runs_started_at ON autopilot_runs(started_at DESC);
`

// Migrate creates the lead tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertLeads inserts new identities in one transaction.
func (s *PostgresStore) InsertLeads(ctx context.Context, records []model.LeadRecord) (int, error) {
	rows := make([][]any, len(records))
	for i, l := range records {
		rows[i] = leadRow(l)
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"identity_key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert leads")
	}
	return int(n), nil
}

// ListLeads returns leads matching f, newest first.
func (s *PostgresStore) ListLeads(ctx context.Context, f leads.LeadFilter) ([]model.LeadRecord, error) {
	query := `SELECT ` + strings.Join(leadColumns, ", ") + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if len(f.IDs) > 0 {
		query += fmt.Sprintf(` AND id = ANY($%d)`, argIdx)
		args = append(args, f.IDs)
		argIdx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Sector != "" {
		query += fmt.Sprintf(` AND sector = $%d`, argIdx)
		args = append(args, f.Sector)
		argIdx++
	}
	if f.City != "" {
		query += fmt.Sprintf(` AND COALESCE(NULLIF(city, ''), location) = $%d`, argIdx)
		args = append(args, f.City)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(f.Limit))
	argIdx++
	if f.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	out := []model.LeadRecord{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// UpdateLeadStatus sets the funnel status of a lead.
func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leads SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return eris.Wrap(err, "postgres: update lead status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(leads.ErrNotFound, "lead %s", id)
	}
	return nil
}

// CountLeadsByStatus counts leads per funnel status.
func (s *PostgresStore) CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads by status")
	}
	defer rows.Close()

	out := make(map[model.LeadStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		out[model.LeadStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count leads by status iterate")
}

// LeadBreakdown groups lead counts on dim.
func (s *PostgresStore) LeadBreakdown(ctx context.Context, dim leads.Dimension) (map[string]model.Breakdown, error) {
	expr, err := breakdownExpr(dim)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS key, count(*),
		count(*) FILTER (WHERE status = 'converted'),
		count(*) FILTER (WHERE status = 'rejected')
		FROM leads GROUP BY key`, expr)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: breakdown by %s", dim)
	}
	defer rows.Close()

	out := make(map[string]model.Breakdown)
	for rows.Next() {
		var (
			key string
			b   model.Breakdown
		)
		if err := rows.Scan(&key, &b.Total, &b.Converted, &b.Rejected); err != nil {
			return nil, eris.Wrap(err, "postgres: scan breakdown")
		}
		out[key] = b
	}
	return out, eris.Wrap(rows.Err(), "postgres: breakdown iterate")
}

// RecordDiscoveries adds candidates to the found ledger.
func (s *PostgresStore) RecordDiscoveries(ctx context.Context, sector, city string, cands []model.Candidate) (int, error) {
	now := s.clock().UTC()
	rows := make([][]any, 0, len(cands))
	for _, c := range cands {
		if c.PlaceID == "" {
			continue
		}
		rows = append(rows, discoveryRow(sector, city, c, now))
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "discoveries",
		Columns:      discoveryColumns,
		ConflictKeys: []string{"place_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: record discoveries")
	}
	return int(n), nil
}

// CountDiscoveries returns the size of the found ledger.
func (s *PostgresStore) CountDiscoveries(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM discoveries`, "discoveries")
}

// RecordAssignments stores campaign assignments, ignoring repeats.
func (s *PostgresStore) RecordAssignments(ctx context.Context, assignments []model.CampaignAssignment) (int, error) {
	rows := make([][]any, len(assignments))
	for i, a := range assignments {
		rows[i] = assignmentRow(a)
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "campaign_assignments",
		Columns:      assignmentColumns,
		ConflictKeys: []string{"campaign_id", "identity_key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: record assignments")
	}
	return int(n), nil
}

// CountAssignments returns how many leads were handed to campaigns.
func (s *PostgresStore) CountAssignments(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM campaign_assignments`, "assignments")
}

// SaveRun writes a finished auto-pilot run. Runs are written once.
func (s *PostgresStore) SaveRun(ctx context.Context, run model.AutoPilotRun) error {
	payload, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO autopilot_runs (id, sector, city, outcome, payload, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		run.ID, run.Sector, run.City, string(run.Outcome), payload, run.StartedAt, run.CompletedAt,
	)
	return eris.Wrap(err, "postgres: save run")
}

// GetRun loads a run by id.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.AutoPilotRun, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM autopilot_runs WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(leads.ErrNotFound, "run %s", id)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return decodeRun(payload)
}

// ListRuns returns the newest runs first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.AutoPilotRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM autopilot_runs ORDER BY started_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []model.AutoPilotRun{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r, err := decodeRun(payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) count(ctx context.Context, query, what string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", what)
	}
	return n, nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
