package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/model"
)

// ErrNotFound is returned when an update or delete targets a missing lead.
var ErrNotFound = eris.New("store: lead not found")

// LeadStore persists lead documents and their dependent records.
type LeadStore interface {
	// GetLeads returns the leads that exist among ids, in no particular
	// order. Missing ids are not an error.
	GetLeads(ctx context.Context, ids []string) ([]model.LeadRecord, error)

	// UpdateLead merges update into the stored document.
	UpdateLead(ctx context.Context, id string, update model.LeadUpdate) error

	// DeleteLeadCascade deletes outreach schedules, then activity logs, then
	// the lead, as one unit.
	DeleteLeadCascade(ctx context.Context, id string) error

	// UpsertLead inserts or replaces a whole lead document.
	UpsertLead(ctx context.Context, lead model.LeadRecord) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig) (LeadStore, error) {
	switch cfg.Driver {
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite", "":
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

// migration is one versioned schema step.
type migration struct {
	version int
	sql     string
}

func decodeLead(id string, data []byte) (model.LeadRecord, error) {
	var l model.LeadRecord
	if err := json.Unmarshal(data, &l); err != nil {
		return l, eris.Wrapf(err, "store: decode lead %s", id)
	}
	l.ID = id
	return l, nil
}
