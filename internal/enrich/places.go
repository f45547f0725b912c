package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/reviews"
	"github.com/sells-group/lead-enricher/pkg/google"
)

// suffixPattern matches common business entity suffixes for fuzzy name matching.
var suffixPattern = regexp.MustCompile(`(?i),?\s*(inc\.?|llc\.?|ltd\.?|co\.?|corp\.?|corporation|company|llp|lp|pllc|pc|p\.?c\.?)$`)

var nonWord = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalizeName strips business suffixes and punctuation and lowercases the name.
func normalizeName(name string) string {
	stripped := suffixPattern.ReplaceAllString(strings.TrimSpace(name), "")
	stripped = nonWord.ReplaceAllString(strings.ToLower(stripped), "")
	return strings.Join(strings.Fields(stripped), " ")
}

// matchPlace returns the first place whose name fuzzily matches the lead's.
func matchPlace(name string, places []google.Place) *google.Place {
	want := normalizeName(name)
	if want == "" {
		return nil
	}
	for i := range places {
		got := normalizeName(places[i].DisplayName.Text)
		if got == "" {
			continue
		}
		if got == want || strings.Contains(got, want) || strings.Contains(want, got) {
			return &places[i]
		}
	}
	return nil
}

// placeFindings is what the places layer hands to later layers.
type placeFindings struct {
	Source  model.RawDataSource
	Fields  map[string]any
	Signals []model.ClosureSignal
	Reviews []reviews.Review
	Rating  float64
	Count   int
}

// readPlace converts a place into verified fields, a raw source and the
// status signal.
func readPlace(p *google.Place) placeFindings {
	f := placeFindings{Fields: map[string]any{}}
	if p == nil {
		return f
	}

	phone := p.NationalPhoneNumber
	if phone == "" {
		phone = p.InternationalPhoneNumber
	}
	var hours string
	if p.RegularOpeningHours != nil {
		hours = strings.Join(p.RegularOpeningHours.WeekdayDescriptions, "; ")
	}

	setIf(f.Fields, "phone", phone)
	setIf(f.Fields, "address", p.FormattedAddress)
	setIf(f.Fields, "website", p.WebsiteURI)
	setIf(f.Fields, "hours", hours)
	setIf(f.Fields, "business_status", p.BusinessStatus)
	if p.UserRatingCount > 0 || p.Rating > 0 {
		rating, count := p.Rating, p.UserRatingCount
		f.Fields["rating"] = rating
		f.Fields["review_count"] = count
		f.Rating, f.Count = rating, count
	}

	switch p.BusinessStatus {
	case google.StatusClosedPermanently:
		f.Signals = append(f.Signals, model.ClosureSignal{
			Source:   model.ClosurePlacesStatus,
			Closed:   true,
			Evidence: "place listing status is " + p.BusinessStatus,
		})
	case google.StatusOperational:
		f.Signals = append(f.Signals, model.ClosureSignal{
			Source:   model.ClosurePlacesStatus,
			Evidence: "place listing status is " + p.BusinessStatus,
		})
	}

	for _, r := range p.Reviews {
		f.Reviews = append(f.Reviews, reviews.Review{Rating: r.Rating, Text: r.Text.Text})
	}

	var b strings.Builder
	b.WriteString("Place listing:\n")
	writeLine(&b, "Name", p.DisplayName.Text)
	writeLine(&b, "Status", p.BusinessStatus)
	writeLine(&b, "Phone", phone)
	writeLine(&b, "Address", p.FormattedAddress)
	writeLine(&b, "Website", p.WebsiteURI)
	writeLine(&b, "Hours", hours)
	if f.Count > 0 {
		fmt.Fprintf(&b, "Rating: %.1f (%d reviews)\n", f.Rating, f.Count)
	}
	for _, r := range p.Reviews {
		if t := strings.TrimSpace(r.Text.Text); t != "" {
			fmt.Fprintf(&b, "Review (%.0f stars): %s\n", r.Rating, t)
		}
	}
	f.Source = model.RawDataSource{Origin: "places", Text: strings.TrimSpace(b.String())}
	return f
}

func setIf(m map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		m[key] = value
	}
}
