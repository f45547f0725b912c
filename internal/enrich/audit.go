package enrich

import (
	"time"

	"github.com/sells-group/lead-enricher/internal/model"
)

// auditLog is the ordered, append-only trail for one run.
type auditLog struct {
	now     func() time.Time
	entries []model.EnrichmentLogEntry
}

func newAuditLog(now func() time.Time) *auditLog {
	return &auditLog{now: now}
}

func (a *auditLog) add(step string, outcome model.LogOutcome, detail string) {
	a.entries = append(a.entries, model.EnrichmentLogEntry{
		Step:      step,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: a.now().UTC(),
	})
}

// Entries returns a copy of the trail.
func (a *auditLog) Entries() []model.EnrichmentLogEntry {
	out := make([]model.EnrichmentLogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
