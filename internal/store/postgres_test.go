package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func leadValues(l model.LeadRecord) []any {
	return []any{
		l.ID, l.IdentityKey, l.Company, l.Industry, string(l.Size), l.Location, l.Address,
		l.Phone, l.Email, l.Website, string(l.Need), l.Score, string(l.Grade), l.Rating,
		l.ReviewCount, l.PlaceID, l.Source, l.Sector, l.City, string(l.Status), l.CreatedAt,
	}
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	records := []model.LeadRecord{
		testLead("l1", "Trattoria Uno", "Via Roma 1, Napoli", now),
		testLead("l2", "Pizzeria Due", "Via Toledo 2, Napoli", now),
		testLead("l3", "Trattoria Uno", "Via Roma 1, Napoli", now),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_leads"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_leads"}, leadColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "leads" .* ON CONFLICT \("identity_key"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	created, err := s.InsertLeads(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLeads_FailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_leads"}, leadColumns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	created, err := s.InsertLeads(context.Background(), []model.LeadRecord{
		testLead("l1", "Acme", "Via A 1, Roma", time.Now().UTC()),
	})
	require.Error(t, err)
	assert.Zero(t, created)
	assert.Contains(t, err.Error(), "postgres: insert leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_ByIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	l := testLead("l1", "Acme", "Via A 1, Roma", now)

	mock.ExpectQuery(`FROM leads WHERE true AND id = ANY\(\$1\) ORDER BY created_at DESC, id LIMIT \$2`).
		WithArgs([]string{"l1", "l2"}, 100).
		WillReturnRows(pgxmock.NewRows(leadColumns).AddRow(leadValues(l)...))

	got, err := s.ListLeads(context.Background(), leads.LeadFilter{IDs: []string{"l1", "l2"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].ID)
	assert.Equal(t, model.GradeB, got[0].Grade)
	assert.Equal(t, model.LeadStatusNew, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_AllFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`AND status = \$1 AND sector = \$2 AND COALESCE\(NULLIF\(city, ''\), location\) = \$3 .* LIMIT \$4 OFFSET \$5`).
		WithArgs("converted", "bar", "Roma", 5, 10).
		WillReturnRows(pgxmock.NewRows(leadColumns))

	got, err := s.ListLeads(context.Background(), leads.LeadFilter{
		Status: model.LeadStatusConverted, Sector: "bar", City: "Roma", Limit: 5, Offset: 10,
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status = \$1 WHERE id = \$2`).
		WithArgs("rejected", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLeadStatus(context.Background(), "missing", model.LeadStatusRejected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, leads.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status`).
		WithArgs("converted", "l1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateLeadStatus(context.Background(), "l1", model.LeadStatusConverted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountLeadsByStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT status, count\(\*\) FROM leads GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("new", 4).
			AddRow("converted", 2))

	got, err := s.CountLeadsByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got[model.LeadStatusNew])
	assert.Equal(t, 2, got[model.LeadStatusConverted])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LeadBreakdown(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(NULLIF\(city, ''\), location\) AS key, count\(\*\),\s+count\(\*\) FILTER \(WHERE status = 'converted'\)`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "total", "converted", "rejected"}).
			AddRow("Napoli", 5, 2, 1))

	got, err := s.LeadBreakdown(context.Background(), leads.DimensionCity)
	require.NoError(t, err)
	assert.Equal(t, model.Breakdown{Total: 5, Converted: 2, Rejected: 1}, got["Napoli"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordDiscoveries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_discoveries"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_discoveries"}, discoveryColumns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("place_id"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.RecordDiscoveries(context.Background(), "bar", "Roma", []model.Candidate{
		{PlaceID: "p1", Name: "Uno"},
		{PlaceID: "p2", Name: "Due"},
		{Name: "no id"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAssignments(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_campaign_assignments"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_campaign_assignments"}, assignmentColumns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("campaign_id", "identity_key"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.RecordAssignments(context.Background(), []model.CampaignAssignment{
		{CampaignID: "c1", CampaignName: "spring", IdentityKey: "uno|via 1", AssignedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Counts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM discoveries`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT count\(\*\) FROM campaign_assignments`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	found, err := s.CountDiscoveries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, found)

	sent, err := s.CountAssignments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO autopilot_runs .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("r1", "bar", "Roma", "completed", pgxmock.AnyArg(), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRun(context.Background(), model.AutoPilotRun{
		ID: "r1", Sector: "bar", City: "Roma", Outcome: model.OutcomeCompleted,
		StartedAt: now, CompletedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload := []byte(`{"run_id":"r1","sector":"bar","city":"Roma","outcome":"no_candidates","leads_found":0}`)
	mock.ExpectQuery(`SELECT payload FROM autopilot_runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	run, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, model.OutcomeNoCandidates, run.Outcome)
	assert.NotNil(t, run.HighValueLeads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM autopilot_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, leads.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM autopilot_runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow([]byte(`{"run_id":"r2","outcome":"completed"}`)).
			AddRow([]byte(`{"run_id":"r1","outcome":"failed","error":"search: boom"}`)))

	runs, err := s.ListRuns(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "search: boom", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-3))
	assert.Equal(t, 7, listLimit(7))
	assert.Equal(t, maxListLimit, listLimit(maxListLimit+1))
}
