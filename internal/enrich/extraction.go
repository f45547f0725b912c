package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-enricher/internal/extract"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/anthropic"
)

const extractionSystem = `You extract facts about one sales lead from the source text you are given.

Rules you must never break:
- Report a fact only if it appears in the sources. Never use outside knowledge and never guess.
- Omit any field the sources do not state.
- A social or professional profile belongs to the lead only if its location context matches the lead's declared city. If a profile cites a different city, do not report it; list it under "rejected" with reason "location mismatch".
- For every social or professional profile you report, record in "profile_locations" the city the source associates with it, when the source gives one.
- Set "business_closed" to true only when a source explicitly says the business closed permanently.

Respond with a single JSON object and nothing else. Allowed keys:
owner_name, email, phone, address, website, instagram, facebook, twitter, tiktok, youtube,
owner_linkedin, company_linkedin, instagram_followers, tiktok_followers, youtube_subscribers,
hours, business_closed, profile_locations (object: field -> city), rejected (array of {field, value, reason}).`

// maxSourceText bounds the combined raw source text sent to the model.
const maxSourceText = 60000

// profileFields are subject to the location check.
var profileFields = []string{
	"instagram", "facebook", "twitter", "tiktok", "youtube",
	"owner_linkedin", "company_linkedin",
}

// Extractor runs the single constrained extraction call for a lead.
type Extractor struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewExtractor creates an Extractor.
func NewExtractor(ai anthropic.Client, model string, maxTokens int64) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Extractor{ai: ai, model: model, maxTokens: maxTokens}
}

// Extract asks the model for candidate fields and then enforces the
// grounding and location rules on its answer. Model output without a JSON
// object yields ErrParse; a field of the wrong type only loses that field.
func (e *Extractor) Extract(ctx context.Context, lead model.LeadRecord, s Strategy, sources []model.RawDataSource) (*model.ExtractionResult, error) {
	if len(sources) == 0 {
		return nil, eris.New("enrich: no raw sources to extract from")
	}

	resp, err := e.ai.CreateMessage(ctx, anthropic.Prompt(e.model, e.maxTokens, extractionSystem, extractionPrompt(lead, s, sources)))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: extraction call")
	}
	resp.Usage.LogUsage(e.model, "extraction")

	var raw map[string]json.RawMessage
	if err := anthropic.DecodeJSON(resp, &raw); err != nil {
		zap.L().Warn("enrich: extraction output unparseable",
			zap.String("lead_id", lead.ID), zap.Error(err))
		return nil, eris.Wrap(ErrParse, err.Error())
	}
	out, dropped := decodeExtraction(raw)
	if len(dropped) > 0 {
		sort.Strings(dropped)
		zap.L().Warn("enrich: dropped extraction fields with unusable values",
			zap.String("lead_id", lead.ID), zap.Strings("fields", dropped))
	}

	corpus := sourceCorpus(sources)
	groundContacts(&out, corpus)
	rejectMismatchedLocations(&out, lead.City)
	return &out, nil
}

func extractionPrompt(lead model.LeadRecord, s Strategy, sources []model.RawDataSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead type: %s\n", lead.Type)
	writeLine(&b, "Name", lead.Name)
	writeLine(&b, "Category", lead.Category)
	writeLine(&b, "Declared city", joinQuery(lead.City, lead.State))

	known := lead.Fields()
	var lines []string
	for _, k := range FillOnlyFields {
		if v, ok := known[k]; ok && !isEmpty(v) {
			lines = append(lines, fmt.Sprintf("  %s: %v", k, v))
		}
	}
	if len(lines) > 0 {
		b.WriteString("Already known (do not repeat unless a source confirms a correction):\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nFocus: %s\n\nSources:\n", s.ExtractionFocus)

	budget := maxSourceText
	for _, src := range sources {
		if budget <= 0 {
			break
		}
		text := src.Text
		if len(text) > budget {
			text = text[:budget]
		}
		budget -= len(text)
		fmt.Fprintf(&b, "\n### %s\n%s\n", src.Origin, text)
	}
	return b.String()
}

func sourceCorpus(sources []model.RawDataSource) string {
	var b strings.Builder
	for _, s := range sources {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// groundContacts drops an email or phone that cannot be found in the
// sources, recording each as a rejection.
func groundContacts(x *model.ExtractionResult, corpus string) {
	if x.Email != "" {
		email := strings.ToLower(strings.TrimSpace(x.Email))
		if len(extract.FindEmails(email)) == 0 || !strings.Contains(strings.ToLower(corpus), email) {
			x.Rejected = append(x.Rejected, model.Rejection{Field: "email", Value: x.Email, Reason: "not found in sources"})
			x.Email = ""
		} else {
			x.Email = email
		}
	}
	if x.Phone != "" {
		d := extract.Digits(x.Phone)
		if len(d) < 10 || !strings.Contains(allDigits(corpus), d) {
			x.Rejected = append(x.Rejected, model.Rejection{Field: "phone", Value: x.Phone, Reason: "not found in sources"})
			x.Phone = ""
		}
	}
}

func allDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rejectMismatchedLocations clears every profile whose cited city differs
// from the lead's and records the mismatch.
func rejectMismatchedLocations(x *model.ExtractionResult, city string) {
	if strings.TrimSpace(city) == "" {
		return
	}
	for _, field := range profileFields {
		loc := strings.TrimSpace(x.ProfileLocations[field])
		if loc == "" || sameCity(loc, city) {
			continue
		}
		value := profileValue(x, field)
		if value == "" {
			continue
		}
		clearProfile(x, field)
		x.Rejected = append(x.Rejected, model.Rejection{
			Field:  field,
			Value:  value,
			Reason: fmt.Sprintf("location mismatch: profile cites %s, lead is in %s", loc, city),
		})
	}
}

func profileValue(x *model.ExtractionResult, field string) string {
	switch field {
	case "instagram":
		return x.Instagram
	case "facebook":
		return x.Facebook
	case "twitter":
		return x.Twitter
	case "tiktok":
		return x.TikTok
	case "youtube":
		return x.YouTube
	case "owner_linkedin":
		return x.OwnerLinkedIn
	case "company_linkedin":
		return x.CompanyLinkedIn
	}
	return ""
}

func clearProfile(x *model.ExtractionResult, field string) {
	switch field {
	case "instagram":
		x.Instagram, x.InstagramFollowers = "", nil
	case "facebook":
		x.Facebook = ""
	case "twitter":
		x.Twitter = ""
	case "tiktok":
		x.TikTok, x.TikTokFollowers = "", nil
	case "youtube":
		x.YouTube, x.YouTubeSubscribers = "", nil
	case "owner_linkedin":
		x.OwnerLinkedIn = ""
	case "company_linkedin":
		x.CompanyLinkedIn = ""
	}
}

// metroWords wrap a city name in profile locations ("Greater Austin Area").
var metroWords = map[string]bool{
	"greater": true, "metro": true, "metropolitan": true, "downtown": true,
	"area": true, "region": true, "the": true,
}

// sameCity reports whether profile location loc names the lead's city. Case,
// diacritics, punctuation and metro wrappers are ignored, and loc may go on
// to name a region or country ("Austin TX", "Austin, Texas, United States").
// The lead's city must open the location, so "New York" is not "York".
func sameCity(loc, city string) bool {
	want := cityTokens(city, true)
	if len(want) == 0 {
		return false
	}
	var got []string
	for _, tok := range cityTokens(loc, false) {
		if !metroWords[tok] {
			got = append(got, tok)
		}
	}
	if len(got) < len(want) {
		return false
	}
	for i, tok := range want {
		if got[i] != tok {
			return false
		}
	}
	return true
}

// cityTokens folds s to lowercase ASCII-ish words. With firstPart set only
// the text before the first comma is used ("Austin, TX" -> [austin]).
func cityTokens(s string, firstPart bool) []string {
	if i := strings.Index(s, ","); firstPart && i >= 0 {
		s = s[:i]
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractedFields flattens an extraction into lead field candidates.
func extractedFields(x *model.ExtractionResult) map[string]any {
	m := map[string]any{}
	if x == nil {
		return m
	}
	setIf(m, "owner_name", x.OwnerName)
	setIf(m, "email", x.Email)
	setIf(m, "phone", x.Phone)
	setIf(m, "address", x.Address)
	setIf(m, "website", x.Website)
	setIf(m, "instagram", x.Instagram)
	setIf(m, "facebook", x.Facebook)
	setIf(m, "twitter", x.Twitter)
	setIf(m, "tiktok", x.TikTok)
	setIf(m, "youtube", x.YouTube)
	setIf(m, "owner_linkedin", x.OwnerLinkedIn)
	setIf(m, "company_linkedin", x.CompanyLinkedIn)
	setIf(m, "hours", x.Hours)
	if x.InstagramFollowers != nil {
		m["instagram_followers"] = *x.InstagramFollowers
	}
	if x.TikTokFollowers != nil {
		m["tiktok_followers"] = *x.TikTokFollowers
	}
	if x.YouTubeSubscribers != nil {
		m["youtube_subscribers"] = *x.YouTubeSubscribers
	}
	return m
}

// isParse reports whether err is a parse failure.
func isParse(err error) bool {
	return errors.Is(err, ErrParse)
}
