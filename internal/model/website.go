package model

// SiteStatus is the liveness classification of a lead's website.
type SiteStatus string

const (
	SiteNone   SiteStatus = "none"
	SiteDead   SiteStatus = "dead"
	SiteParked SiteStatus = "parked"
	SiteLive   SiteStatus = "live"
)

// WebsiteAnalysis holds the raw measurements of one website check.
type WebsiteAnalysis struct {
	URL                string `json:"url"`
	FinalURL           string `json:"final_url,omitempty"`
	Reachable          bool   `json:"reachable"`
	SSL                bool   `json:"ssl"`
	LatencyMS          int64  `json:"latency_ms"`
	HasViewport        bool   `json:"has_viewport"`
	HasMetaDescription bool   `json:"has_meta_description"`
	HasCTA             bool   `json:"has_cta"`
	HasForm            bool   `json:"has_form"`
	SocialLinks        int    `json:"social_links"`
	CopyrightYear      int    `json:"copyright_year,omitempty"`

	// HTML is the fetched markup, kept for the heuristic classifiers.
	HTML string `json:"-"`
}

// Reputation is the off-site input to the presence sub-score.
type Reputation struct {
	Rating          float64
	ReviewCount     int
	SocialPlatforms int
}

// WebsiteScores are the five weighted sub-scores (0–100) and their composite.
type WebsiteScores struct {
	Technical int `json:"technical"`
	Content   int `json:"content"`
	Mobile    int `json:"mobile"`
	Presence  int `json:"presence"`
	Design    int `json:"design"`
	Composite int `json:"composite"`
}
