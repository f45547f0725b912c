package enrich

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/sells-group/lead-enricher/internal/model"
)

// FillOnlyFields are written only when the stored value is empty.
var FillOnlyFields = []string{
	"owner_name", "email", "phone", "address", "website",
	"instagram", "facebook", "twitter", "tiktok", "youtube",
	"owner_linkedin", "company_linkedin",
	"instagram_followers", "tiktok_followers", "youtube_subscribers",
}

// AlwaysRefreshFields are overwritten whenever the run produced a value.
var AlwaysRefreshFields = []string{
	"website_score", "website_scores", "site_status", "tech_stack",
	"hours", "rating", "review_count", "business_status",
	"review_summary", "competitors", "best_time_to_call", "ai_briefing",
}

// Bookkeeping fields written on every update.
const (
	fieldEnrichmentLog  = "enrichment_log"
	fieldLastEnrichedAt = "last_enriched_at"
	fieldSchemaVersion  = "schema_version"
)

// refreshValues collects the run's values for the always-refresh fields.
func refreshValues(res *model.EnrichResult) map[string]any {
	out := map[string]any{}
	for _, k := range []string{"hours", "rating", "review_count", "business_status"} {
		if v, ok := res.Discovered[k]; ok {
			out[k] = v
		}
	}
	if res.Scores != nil {
		out["website_score"] = res.Scores.Composite
		out["website_scores"] = res.Scores
	}
	if res.SiteStatus != "" {
		out["site_status"] = res.SiteStatus
	}
	if res.TechStack != nil {
		out["tech_stack"] = res.TechStack
	}
	if res.ReviewSummary != nil {
		out["review_summary"] = res.ReviewSummary
	}
	if len(res.Competitors) > 0 {
		out["competitors"] = res.Competitors
	}
	if res.BestTimeToCall != "" {
		out["best_time_to_call"] = res.BestTimeToCall
	}
	if res.Briefing != nil {
		out["ai_briefing"] = res.Briefing
	}
	return out
}

// BuildUpdate applies the merge policy: fill-only fields land only where the
// stored lead is empty, refresh fields land whenever the run produced them.
// Keys outside both lists are never written.
func BuildUpdate(current model.LeadRecord, res *model.EnrichResult, now time.Time) model.LeadUpdate {
	update := model.LeadUpdate{}
	existing := current.Fields()

	for _, k := range FillOnlyFields {
		v, ok := res.Discovered[k]
		if !ok || isEmpty(v) {
			continue
		}
		if cur, has := existing[k]; has && !isEmpty(cur) {
			continue
		}
		update[k] = v
	}

	refresh := refreshValues(res)
	for _, k := range AlwaysRefreshFields {
		if v, ok := refresh[k]; ok && !isEmpty(v) {
			update[k] = v
		}
	}

	update[fieldEnrichmentLog] = res.Log
	update[fieldLastEnrichedAt] = now.UTC()
	update[fieldSchemaVersion] = model.SchemaVersion
	return update
}

// mergedView returns the lead as it will look once the fill-only candidates
// and refreshed facts are applied.
func mergedView(current model.LeadRecord, res *model.EnrichResult, now time.Time) model.LeadRecord {
	return ApplyUpdate(current, BuildUpdate(current, res, now))
}

// ApplyUpdate overlays an update payload on a lead record.
func ApplyUpdate(current model.LeadRecord, update model.LeadUpdate) model.LeadRecord {
	fields := current.Fields()
	for k, v := range update {
		fields[k] = v
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return current
	}
	var out model.LeadRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return current
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	}
	return false
}
