package enrich

import (
	"strings"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Strategy carries everything that varies by lead type: how to search for
// the lead, what the extraction should focus on, and how to frame the brief.
type Strategy struct {
	Type model.LeadType

	// Query builds the web search query for a lead.
	Query func(lead model.LeadRecord) string

	// ExtractionFocus is appended to the extraction prompt.
	ExtractionFocus string

	// BriefingRole and BriefingFocus shape the briefing prompt.
	BriefingRole  string
	BriefingFocus string

	// UsesPlaces gates the structured place lookup and competitor search.
	UsesPlaces bool

	// AlwaysNetwork skips the category gate on professional-network search.
	AlwaysNetwork bool
}

var strategies = map[model.LeadType]Strategy{
	model.LeadTypeBusiness: {
		Type: model.LeadTypeBusiness,
		Query: func(l model.LeadRecord) string {
			return joinQuery(quote(l.Name), l.City, l.State)
		},
		ExtractionFocus: "This is a local business. Prioritize the owner's name, a direct phone number, a contact email, the street address, opening hours and the business's own social profiles.",
		BriefingRole:    "a local business owner",
		BriefingFocus:   "Focus on the website's weaknesses, reputation and how the business wins local customers.",
		UsesPlaces:      true,
	},
	model.LeadTypePodcast: {
		Type: model.LeadTypePodcast,
		Query: func(l model.LeadRecord) string {
			return joinQuery(quote(l.Name), "podcast host contact")
		},
		ExtractionFocus: "This is a podcast. Prioritize the host's name, a booking or contact email, the show's website and its YouTube, Instagram and TikTok profiles with audience sizes.",
		BriefingRole:    "a podcast host",
		BriefingFocus:   "Focus on audience growth, guest booking and sponsorship readiness.",
		AlwaysNetwork:   true,
	},
	model.LeadTypeCreator: {
		Type: model.LeadTypeCreator,
		Query: func(l model.LeadRecord) string {
			return joinQuery(quote(l.Name), "creator instagram tiktok youtube")
		},
		ExtractionFocus: "This is a content creator. Prioritize the creator's real name, a business or management email, their website and every social profile with follower counts.",
		BriefingRole:    "an independent content creator",
		BriefingFocus:   "Focus on the creator's platforms, audience size and brand-deal readiness.",
		AlwaysNetwork:   true,
	},
}

// StrategyFor returns the strategy for a lead type. Unknown types are
// handled as businesses.
func StrategyFor(t model.LeadType) Strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return strategies[model.LeadTypeBusiness]
}

func quote(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}

func joinQuery(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
