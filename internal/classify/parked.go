package classify

import (
	"strings"

	"github.com/sells-group/lead-enricher/internal/extract"
	"github.com/sells-group/lead-enricher/internal/model"
)

const (
	thinTextLimit   = 200
	singlePhraseMax = 500
)

// parkingPhrases appear on registrar and domain-marketplace placeholder pages.
var parkingPhrases = []string{
	"this domain is for sale",
	"domain is for sale",
	"buy this domain",
	"this domain may be for sale",
	"domain parking",
	"parked free",
	"parked domain",
	"this web page is parked",
	"related searches",
	"sponsored listings",
	"coming soon",
	"under construction",
	"website is under construction",
	"future home of",
	"this site can't be reached",
	"account suspended",
	"default web page",
	"welcome to nginx",
	"it works!",
}

// parkingSignatures are markup fingerprints of parking platforms.
var parkingSignatures = []string{
	"sedoparking", "parkingcrew", "bodis.com", "//dan.com", "afternic",
	"hugedomains", "parklogic", "domainsponsor", "window.park",
}

// ParkedResult explains a parked verdict.
type ParkedResult struct {
	Parked  bool
	Reason  string
	Phrases []string
}

// IsParked applies the parked-domain rules to a fetched page:
//   - fewer than 200 visible characters and no form element
//   - two or more parking phrases, regardless of length
//   - exactly one parking phrase with fewer than 500 visible characters
//   - a parking-platform markup signature
func IsParked(html string) ParkedResult {
	lowerHTML := strings.ToLower(html)
	text := strings.ToLower(extract.StripHTML(html))

	for _, sig := range parkingSignatures {
		if strings.Contains(lowerHTML, sig) {
			return ParkedResult{Parked: true, Reason: "parking platform signature: " + sig}
		}
	}

	var matched []string
	for _, p := range parkingPhrases {
		if strings.Contains(text, p) {
			matched = append(matched, p)
		}
	}

	switch {
	case len(matched) >= 2:
		return ParkedResult{Parked: true, Reason: "multiple parking phrases", Phrases: matched}
	case len(matched) == 1 && len(text) < singlePhraseMax:
		return ParkedResult{Parked: true, Reason: "parking phrase on thin page", Phrases: matched}
	case len(text) < thinTextLimit && !strings.Contains(lowerHTML, "<form"):
		return ParkedResult{Parked: true, Reason: "thin page without form", Phrases: matched}
	}
	return ParkedResult{Phrases: matched}
}

// SiteStatus classifies a lead's website from the quality check.
func SiteStatus(website string, analysis *model.WebsiteAnalysis) model.SiteStatus {
	if strings.TrimSpace(website) == "" {
		return model.SiteNone
	}
	if analysis == nil || !analysis.Reachable {
		return model.SiteDead
	}
	if IsParked(analysis.HTML).Parked {
		return model.SiteParked
	}
	return model.SiteLive
}
