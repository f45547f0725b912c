package model

// EnrichResult is everything one run discovered or derived for a lead. The
// pipeline never persists it; the caller applies it via the lead store.
type EnrichResult struct {
	RunID  string `json:"run_id"`
	LeadID string `json:"lead_id"`

	// Discovered holds acquired facts keyed by lead field: fill-only
	// candidates plus place-verified hours, rating, review count and status.
	Discovered map[string]any `json:"discovered,omitempty"`

	Analysis       *WebsiteAnalysis     `json:"website_analysis,omitempty"`
	Scores         *WebsiteScores       `json:"website_scores,omitempty"`
	SiteStatus     SiteStatus           `json:"site_status,omitempty"`
	TechStack      []string             `json:"tech_stack,omitempty"`
	ReviewSummary  *ReviewSummary       `json:"review_summary,omitempty"`
	Competitors    []CompetitorSnapshot `json:"competitors,omitempty"`
	BestTimeToCall string               `json:"best_time_to_call,omitempty"`
	Briefing       *Briefing            `json:"ai_briefing,omitempty"`

	Status            BusinessStatusDecision `json:"business_status"`
	PermanentlyClosed bool                   `json:"permanently_closed"`
	Rejections        []Rejection            `json:"rejections,omitempty"`

	Sources []string             `json:"sources,omitempty"`
	Log     []EnrichmentLogEntry `json:"enrichment_log,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// OwnerName returns the owner name discovered by the run, if any.
func (r *EnrichResult) OwnerName() string {
	if r == nil {
		return ""
	}
	if v, ok := r.Discovered["owner_name"].(string); ok {
		return v
	}
	return ""
}

// LeadOutcome is the per-lead line of a batch summary.
type LeadOutcome struct {
	LeadID            string   `json:"lead_id"`
	OwnerName         string   `json:"owner_name,omitempty"`
	HasBriefing       bool     `json:"has_briefing"`
	PermanentlyClosed bool     `json:"permanently_closed"`
	Sources           []string `json:"sources,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// BatchSummary is the synchronous response to a batch enrichment request.
type BatchSummary struct {
	Requested     int           `json:"requested"`
	Enriched      int           `json:"enriched"`
	DeletedClosed int           `json:"deleted_closed"`
	WithOwner     int           `json:"with_owner"`
	WithBriefing  int           `json:"with_briefing"`
	Failed        int           `json:"failed"`
	NotFound      []string      `json:"not_found,omitempty"`
	Results       []LeadOutcome `json:"results"`
}
