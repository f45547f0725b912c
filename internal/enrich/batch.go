package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/store"
)

// ErrBatchTooLarge is returned for more than config.MaxBatchSize ids.
var ErrBatchTooLarge = eris.Errorf("enrich: batch exceeds %d lead ids", config.MaxBatchSize)

// ErrEmptyBatch is returned when no lead ids were given.
var ErrEmptyBatch = eris.New("enrich: no lead ids")

// LeadEnricher runs one lead through the cascade.
type LeadEnricher interface {
	Enrich(ctx context.Context, lead model.LeadRecord) *model.EnrichResult
}

// Runner enriches batches of stored leads and persists each outcome as soon
// as its run finishes.
type Runner struct {
	enricher    LeadEnricher
	store       store.LeadStore
	maxSize     int
	concurrency int
	now         func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(e LeadEnricher, st store.LeadStore, cfg config.BatchConfig) *Runner {
	maxSize := cfg.MaxSize
	if maxSize <= 0 || maxSize > config.MaxBatchSize {
		maxSize = config.MaxBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{enricher: e, store: st, maxSize: maxSize, concurrency: concurrency, now: time.Now}
}

// leadRun is one lead's slot in the batch. Each goroutine owns exactly one.
type leadRun struct {
	outcome model.LeadOutcome
	deleted bool
}

// EnrichBatch loads, enriches and persists up to the configured number of
// leads. Ids with no stored lead are reported in NotFound. Only a batch-level
// failure (bad input, the initial load) returns an error.
func (r *Runner) EnrichBatch(ctx context.Context, ids []string) (*model.BatchSummary, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(ids) > r.maxSize {
		return nil, eris.Wrapf(ErrBatchTooLarge, "got %d", len(ids))
	}

	leads, err := r.store.GetLeads(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load leads")
	}
	byID := make(map[string]model.LeadRecord, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}

	summary := &model.BatchSummary{Requested: len(ids), Results: []model.LeadOutcome{}}
	var found []model.LeadRecord
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			found = append(found, l)
		} else {
			summary.NotFound = append(summary.NotFound, id)
		}
	}

	runs := make([]leadRun, len(found))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, lead := range found {
		g.Go(func() error {
			runs[i] = r.process(ctx, lead)
			return nil
		})
	}
	_ = g.Wait()

	for _, lr := range runs {
		o := lr.outcome
		summary.Results = append(summary.Results, o)
		switch {
		case o.Error != "":
			summary.Failed++
		case lr.deleted:
			summary.DeletedClosed++
		default:
			summary.Enriched++
			if o.OwnerName != "" {
				summary.WithOwner++
			}
			if o.HasBriefing {
				summary.WithBriefing++
			}
		}
	}

	zap.L().Info("enrich: batch complete",
		zap.Int("requested", summary.Requested),
		zap.Int("enriched", summary.Enriched),
		zap.Int("deleted_closed", summary.DeletedClosed),
		zap.Int("failed", summary.Failed),
		zap.Int("not_found", len(summary.NotFound)),
	)
	return summary, nil
}

// process enriches one lead and immediately writes the update or the
// cascade delete.
func (r *Runner) process(ctx context.Context, lead model.LeadRecord) leadRun {
	log := zap.L().With(zap.String("lead_id", lead.ID))
	res := r.enricher.Enrich(ctx, lead)

	out := leadRun{outcome: model.LeadOutcome{LeadID: lead.ID}}
	if res == nil {
		out.outcome.Error = "enrich: no result"
		return out
	}
	out.outcome.Sources = res.Sources
	out.outcome.PermanentlyClosed = res.PermanentlyClosed
	if res.Error != "" {
		out.outcome.Error = res.Error
		return out
	}

	if res.PermanentlyClosed {
		if err := r.store.DeleteLeadCascade(ctx, lead.ID); err != nil {
			log.Error("enrich: cascade delete failed", zap.Error(err))
			out.outcome.Error = err.Error()
			return out
		}
		log.Info("enrich: deleted permanently closed lead", zap.String("reasoning", res.Status.Reasoning))
		out.deleted = true
		return out
	}

	if err := r.store.UpdateLead(ctx, lead.ID, BuildUpdate(lead, res, r.now())); err != nil {
		log.Error("enrich: persist update failed", zap.Error(err))
		out.outcome.Error = err.Error()
		return out
	}

	out.outcome.OwnerName = lead.OwnerName
	if out.outcome.OwnerName == "" {
		out.outcome.OwnerName = res.OwnerName()
	}
	out.outcome.HasBriefing = res.Briefing != nil
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
