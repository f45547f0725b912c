package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedDependents(t *testing.T, st *SQLiteStore, leadID string) {
	t.Helper()
	_, err := st.db.Exec(`INSERT INTO outreach_schedules (id, lead_id, channel) VALUES (?, ?, 'phone')`, leadID+"-o", leadID)
	require.NoError(t, err)
	_, err = st.db.Exec(`INSERT INTO activity_logs (id, lead_id, kind) VALUES (?, ?, 'call')`, leadID+"-a", leadID)
	require.NoError(t, err)
}

func countRows(t *testing.T, st *SQLiteStore, table, leadID string) int {
	t.Helper()
	col := "lead_id"
	if table == "leads" {
		col = "id"
	}
	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE `+col+` = ?`, leadID).Scan(&n))
	return n
}

func TestSQLite_UpsertAndGetLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rating := 4.6
	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Joe's Bakery", City: "Austin", Rating: &rating,
	}))
	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{ID: "lead-2", Type: model.LeadTypeCreator, Name: "Maya Cooks"}))

	leads, err := st.GetLeads(ctx, []string{"lead-1", "lead-2", "missing"})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	byID := map[string]model.LeadRecord{}
	for _, l := range leads {
		byID[l.ID] = l
	}
	assert.Equal(t, "Joe's Bakery", byID["lead-1"].Name)
	require.NotNil(t, byID["lead-1"].Rating)
	assert.Equal(t, 4.6, *byID["lead-1"].Rating)
	assert.Equal(t, model.LeadTypeCreator, byID["lead-2"].Type)
}

func TestSQLite_UpsertReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{ID: "lead-1", Name: "Old Name", Phone: "555"}))
	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{ID: "lead-1", Name: "New Name"}))

	leads, err := st.GetLeads(ctx, []string{"lead-1"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "New Name", leads[0].Name)
	assert.Empty(t, leads[0].Phone)
}

func TestSQLite_UpsertGeneratesID(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.UpsertLead(context.Background(), model.LeadRecord{Name: "No Id"}))

	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_UpdateLead_MergesFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Joe's Bakery", Phone: "(512) 555-0142",
	}))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := st.UpdateLead(ctx, "lead-1", model.LeadUpdate{
		"email":            "hello@joesbakery.com",
		"website_score":    72,
		"tech_stack":       []string{"WordPress"},
		"last_enriched_at": now,
		"schema_version":   model.SchemaVersion,
	})
	require.NoError(t, err)

	leads, err := st.GetLeads(ctx, []string{"lead-1"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	l := leads[0]
	assert.Equal(t, "Joe's Bakery", l.Name)
	assert.Equal(t, "(512) 555-0142", l.Phone)
	assert.Equal(t, "hello@joesbakery.com", l.Email)
	require.NotNil(t, l.WebsiteScore)
	assert.Equal(t, 72, *l.WebsiteScore)
	assert.Equal(t, []string{"WordPress"}, l.TechStack)
	require.NotNil(t, l.LastEnrichedAt)
	assert.True(t, now.Equal(*l.LastEnrichedAt))
	assert.Equal(t, model.SchemaVersion, l.SchemaVersion)
}

func TestSQLite_UpdateLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.UpdateLead(context.Background(), "ghost", model.LeadUpdate{"phone": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_DeleteLeadCascade(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{ID: "lead-1", Name: "Closed Diner"}))
	require.NoError(t, st.UpsertLead(ctx, model.LeadRecord{ID: "lead-2", Name: "Open Diner"}))
	seedDependents(t, st, "lead-1")
	seedDependents(t, st, "lead-2")

	require.NoError(t, st.DeleteLeadCascade(ctx, "lead-1"))

	assert.Zero(t, countRows(t, st, "leads", "lead-1"))
	assert.Zero(t, countRows(t, st, "outreach_schedules", "lead-1"))
	assert.Zero(t, countRows(t, st, "activity_logs", "lead-1"))

	assert.Equal(t, 1, countRows(t, st, "leads", "lead-2"))
	assert.Equal(t, 1, countRows(t, st, "outreach_schedules", "lead-2"))
	assert.Equal(t, 1, countRows(t, st, "activity_logs", "lead-2"))
}

func TestSQLite_DeleteLeadCascade_MissingLeadRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Orphaned dependents survive a failed cascade.
	seedDependents(t, st, "ghost")

	err := st.DeleteLeadCascade(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, countRows(t, st, "outreach_schedules", "ghost"))
	assert.Equal(t, 1, countRows(t, st, "activity_logs", "ghost"))
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))

	var version int
	require.NoError(t, st.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, len(sqliteMigrations), version)

	var rows int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, len(sqliteMigrations), rows)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.IsType(t, &SQLiteStore{}, st)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
