package model

import "time"

// RawDataSource is one unstructured text fragment with its provenance. It
// lives only for the duration of one enrichment run.
type RawDataSource struct {
	Origin string
	Text   string
}

// Rejection records a candidate value the extraction refused to accept.
type Rejection struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ExtractionResult holds the candidate fields returned by the constrained
// extraction call. Every field is optional.
type ExtractionResult struct {
	OwnerName          string `json:"owner_name,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Address            string `json:"address,omitempty"`
	Website            string `json:"website,omitempty"`
	Instagram          string `json:"instagram,omitempty"`
	Facebook           string `json:"facebook,omitempty"`
	Twitter            string `json:"twitter,omitempty"`
	TikTok             string `json:"tiktok,omitempty"`
	YouTube            string `json:"youtube,omitempty"`
	OwnerLinkedIn      string `json:"owner_linkedin,omitempty"`
	CompanyLinkedIn    string `json:"company_linkedin,omitempty"`
	InstagramFollowers *int   `json:"instagram_followers,omitempty"`
	TikTokFollowers    *int   `json:"tiktok_followers,omitempty"`
	YouTubeSubscribers *int   `json:"youtube_subscribers,omitempty"`
	Hours              string `json:"hours,omitempty"`
	BusinessClosed     bool   `json:"business_closed,omitempty"`

	// ProfileLocations maps a social/professional field key to the city the
	// source text associates with that profile.
	ProfileLocations map[string]string `json:"profile_locations,omitempty"`
	Rejected         []Rejection       `json:"rejected,omitempty"`
}

// LogOutcome classifies an audit log entry.
type LogOutcome string

const (
	OutcomeSuccess   LogOutcome = "success"
	OutcomeSkipped   LogOutcome = "skipped"
	OutcomeFailed    LogOutcome = "failed"
	OutcomeRejected  LogOutcome = "rejected"
	OutcomeSuspected LogOutcome = "suspected"
	OutcomeClosed    LogOutcome = "closed"
)

// EnrichmentLogEntry is one step of the append-only audit trail.
type EnrichmentLogEntry struct {
	Step      string     `json:"step"`
	Outcome   LogOutcome `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ClosureSource names where a closure signal came from, in priority order.
type ClosureSource string

const (
	ClosurePlacesStatus   ClosureSource = "places_status"
	ClosureKnowledgePanel ClosureSource = "knowledge_panel"
	ClosureExtraction     ClosureSource = "extraction"
	ClosureSearchSnippet  ClosureSource = "search_snippet"
)

// ClosureSignal is one piece of evidence about permanent closure. Closed is
// false only for explicit "still operating" evidence (an OPERATIONAL status).
type ClosureSignal struct {
	Source   ClosureSource
	Closed   bool
	Evidence string
}

// BusinessStatusDecision is the resolved closure verdict for a run.
type BusinessStatusDecision struct {
	Status    string        `json:"status"` // StatusOpen or StatusPermanentlyClosed
	Source    ClosureSource `json:"source,omitempty"`
	Reasoning string        `json:"reasoning,omitempty"`
}

// Closed reports whether the decision is permanent closure.
func (d BusinessStatusDecision) Closed() bool {
	return d.Status == StatusPermanentlyClosed
}
