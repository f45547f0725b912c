package model

import (
	"encoding/json"
	"time"
)

// LeadType distinguishes the three kinds of prospects the pipeline handles.
type LeadType string

const (
	LeadTypeBusiness LeadType = "business"
	LeadTypePodcast  LeadType = "podcast"
	LeadTypeCreator  LeadType = "creator"
)

// Valid reports whether t is a known lead type.
func (t LeadType) Valid() bool {
	switch t {
	case LeadTypeBusiness, LeadTypePodcast, LeadTypeCreator:
		return true
	}
	return false
}

// SchemaVersion is stamped on every lead document written by the pipeline.
const SchemaVersion = 2

// LeadRecord is the stored lead: identity plus mutable enrichment fields.
// JSON tags double as the field keys used by the merge policy and the store.
type LeadRecord struct {
	ID       string   `json:"id" yaml:"id"`
	OwnerID  string   `json:"owner_id,omitempty" yaml:"owner_id"`
	Type     LeadType `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category,omitempty" yaml:"category"`
	City     string   `json:"city,omitempty" yaml:"city"`
	State    string   `json:"state,omitempty" yaml:"state"`

	// Contact channels.
	OwnerName string `json:"owner_name,omitempty" yaml:"owner_name"`
	Email     string `json:"email,omitempty" yaml:"email"`
	Phone     string `json:"phone,omitempty" yaml:"phone"`
	Address   string `json:"address,omitempty" yaml:"address"`
	Website   string `json:"website,omitempty" yaml:"website"`

	// Social handles and audience.
	Instagram          string `json:"instagram,omitempty" yaml:"instagram"`
	Facebook           string `json:"facebook,omitempty" yaml:"facebook"`
	Twitter            string `json:"twitter,omitempty" yaml:"twitter"`
	TikTok             string `json:"tiktok,omitempty" yaml:"tiktok"`
	YouTube            string `json:"youtube,omitempty" yaml:"youtube"`
	OwnerLinkedIn      string `json:"owner_linkedin,omitempty" yaml:"owner_linkedin"`
	CompanyLinkedIn    string `json:"company_linkedin,omitempty" yaml:"company_linkedin"`
	InstagramFollowers *int   `json:"instagram_followers,omitempty" yaml:"instagram_followers"`
	TikTokFollowers    *int   `json:"tiktok_followers,omitempty" yaml:"tiktok_followers"`
	YouTubeSubscribers *int   `json:"youtube_subscribers,omitempty" yaml:"youtube_subscribers"`

	// Reputation and status.
	Hours          string   `json:"hours,omitempty" yaml:"hours"`
	Rating         *float64 `json:"rating,omitempty" yaml:"rating"`
	ReviewCount    *int     `json:"review_count,omitempty" yaml:"review_count"`
	BusinessStatus string   `json:"business_status,omitempty" yaml:"business_status"`

	// Derived.
	WebsiteScore   *int                 `json:"website_score,omitempty" yaml:"-"`
	WebsiteScores  *WebsiteScores       `json:"website_scores,omitempty" yaml:"-"`
	SiteStatus     SiteStatus           `json:"site_status,omitempty" yaml:"-"`
	TechStack      []string             `json:"tech_stack,omitempty" yaml:"-"`
	ReviewSummary  *ReviewSummary       `json:"review_summary,omitempty" yaml:"-"`
	Competitors    []CompetitorSnapshot `json:"competitors,omitempty" yaml:"-"`
	BestTimeToCall string               `json:"best_time_to_call,omitempty" yaml:"-"`
	AIBriefing     *Briefing            `json:"ai_briefing,omitempty" yaml:"-"`
	EnrichmentLog  []EnrichmentLogEntry `json:"enrichment_log,omitempty" yaml:"-"`
	LastEnrichedAt *time.Time           `json:"last_enriched_at,omitempty" yaml:"-"`
	SchemaVersion  int                  `json:"schema_version,omitempty" yaml:"-"`
}

// Fields flattens the record into its JSON field map. Absent optional fields
// are omitted.
func (l LeadRecord) Fields() map[string]any {
	data, err := json.Marshal(l)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// LeadUpdate is the update-by-id payload: field key to new value.
type LeadUpdate map[string]any

// BusinessStatus values reported by the place directory and carried on the lead.
const (
	StatusOperational       = "OPERATIONAL"
	StatusClosedTemporarily = "CLOSED_TEMPORARILY"
	StatusClosedPermanently = "CLOSED_PERMANENTLY"
	StatusPermanentlyClosed = "permanently_closed"
	StatusOpen              = "open"
)

// CompetitorSnapshot is nearby-competitor context for the briefing.
type CompetitorSnapshot struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	HasWebsite  bool    `json:"has_website"`
	Address     string  `json:"address,omitempty"`
}

// ReviewSummary condenses customer reviews for a salesperson.
type ReviewSummary struct {
	AverageRating  float64  `json:"average_rating"`
	Count          int      `json:"count"`
	PositiveThemes []string `json:"positive_themes,omitempty"`
	NegativeThemes []string `json:"negative_themes,omitempty"`
	TalkingPoints  []string `json:"talking_points,omitempty"`
	Source         string   `json:"source"` // "numeric" or "llm"
}

// Channel is a recommended outreach channel.
type Channel string

const (
	ChannelPhone       Channel = "phone"
	ChannelEmail       Channel = "email"
	ChannelInPerson    Channel = "in_person"
	ChannelInstagramDM Channel = "instagram_dm"
	ChannelLinkedIn    Channel = "linkedin"
	ChannelFacebook    Channel = "facebook_message"
)

// Channels is the fixed enum the briefing must choose from.
var Channels = []Channel{
	ChannelPhone, ChannelEmail, ChannelInPerson,
	ChannelInstagramDM, ChannelLinkedIn, ChannelFacebook,
}

// Valid reports whether c is in the fixed channel enum.
func (c Channel) Valid() bool {
	for _, ch := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Briefing is the synthesized sales brief.
type Briefing struct {
	Summary            string   `json:"summary"`
	TalkingPoints      []string `json:"talking_points"`
	RecommendedChannel Channel  `json:"recommended_channel"`
	ChannelReason      string   `json:"channel_reason"`
	Objections         []string `json:"objections"`
	BestTimeToCall     string   `json:"best_time_to_call"`
}
