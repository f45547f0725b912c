package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/model"
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

func TestPostgresStore_GetLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, data FROM leads WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"lead-1", "missing"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("lead-1", []byte(`{"type":"business","name":"Joe's Bakery","city":"Austin","phone":"(512) 555-0142"}`)))

	leads, err := s.GetLeads(context.Background(), []string{"lead-1", "missing"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "lead-1", leads[0].ID)
	assert.Equal(t, model.LeadTypeBusiness, leads[0].Type)
	assert.Equal(t, "(512) 555-0142", leads[0].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeads_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	leads, err := s.GetLeads(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeads_BadDocument(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, data FROM leads`).
		WithArgs([]string{"lead-1"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).AddRow("lead-1", []byte(`not json`)))

	_, err := s.GetLeads(context.Background(), []string{"lead-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode lead lead-1")
}

func TestPostgresStore_UpdateLead_MergesJSON(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET data = data \|\| \$2::jsonb`).
		WithArgs("lead-1", []byte(`{"phone":"(512) 555-0142","schema_version":2}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateLead(context.Background(), "lead-1", model.LeadUpdate{
		"phone":          "(512) 555-0142",
		"schema_version": 2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads`).
		WithArgs("ghost", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLead(context.Background(), "ghost", model.LeadUpdate{"phone": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_DeleteLeadCascade_Order(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM outreach_schedules WHERE lead_id = \$1`).
		WithArgs("lead-1").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM activity_logs WHERE lead_id = \$1`).
		WithArgs("lead-1").WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs("lead-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteLeadCascade(context.Background(), "lead-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteLeadCascade_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM outreach_schedules`).
		WithArgs("lead-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM activity_logs`).
		WithArgs("lead-1").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.DeleteLeadCascade(context.Background(), "lead-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete activity logs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteLeadCascade_MissingLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM outreach_schedules`).WithArgs("ghost").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM activity_logs`).WithArgs("ghost").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM leads`).WithArgs("ghost").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := s.DeleteLeadCascade(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads \(id, data\) VALUES \(\$1, \$2\)\s+ON CONFLICT`).
		WithArgs("lead-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertLead(context.Background(), model.LeadRecord{ID: "lead-9", Type: model.LeadTypePodcast, Name: "Night Shift"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AppliesPendingOnly(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM schema_version`).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`idx_leads_type`).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(`INSERT INTO schema_version`).WithArgs(2).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_UpToDate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT COALESCE`).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(len(postgresMigrations)))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		pool    *PoolConfig
		wantMax int32
		wantMin int32
	}{
		{"defaults", nil, 10, 2},
		{"zero values keep defaults", &PoolConfig{}, 10, 2},
		{"configured", &PoolConfig{MaxConns: 25, MinConns: 5}, 25, 5},
		{"min capped at max", &PoolConfig{MaxConns: 1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pgxpool.ParseConfig("postgres://leads@localhost:5432/leads")
			require.NoError(t, err)

			applyPoolConfig(cfg, tt.pool)
			assert.Equal(t, tt.wantMax, cfg.MaxConns)
			assert.Equal(t, tt.wantMin, cfg.MinConns)
			assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
		})
	}
}
