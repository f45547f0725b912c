package enrich

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
)

// extractionStrings maps the text keys of the extraction answer to their
// destination on the result.
var extractionStrings = map[string]func(x *model.ExtractionResult) *string{
	"owner_name":       func(x *model.ExtractionResult) *string { return &x.OwnerName },
	"email":            func(x *model.ExtractionResult) *string { return &x.Email },
	"phone":            func(x *model.ExtractionResult) *string { return &x.Phone },
	"address":          func(x *model.ExtractionResult) *string { return &x.Address },
	"website":          func(x *model.ExtractionResult) *string { return &x.Website },
	"instagram":        func(x *model.ExtractionResult) *string { return &x.Instagram },
	"facebook":         func(x *model.ExtractionResult) *string { return &x.Facebook },
	"twitter":          func(x *model.ExtractionResult) *string { return &x.Twitter },
	"tiktok":           func(x *model.ExtractionResult) *string { return &x.TikTok },
	"youtube":          func(x *model.ExtractionResult) *string { return &x.YouTube },
	"owner_linkedin":   func(x *model.ExtractionResult) *string { return &x.OwnerLinkedIn },
	"company_linkedin": func(x *model.ExtractionResult) *string { return &x.CompanyLinkedIn },
	"hours":            func(x *model.ExtractionResult) *string { return &x.Hours },
}

var extractionCounts = map[string]func(x *model.ExtractionResult) **int{
	"instagram_followers": func(x *model.ExtractionResult) **int { return &x.InstagramFollowers },
	"tiktok_followers":    func(x *model.ExtractionResult) **int { return &x.TikTokFollowers },
	"youtube_subscribers": func(x *model.ExtractionResult) **int { return &x.YouTubeSubscribers },
}

// decodeExtraction converts the answer object key by key. A key whose value
// has an unusable type is skipped and named in the returned list; the rest
// of the answer survives. Unknown keys are ignored.
func decodeExtraction(raw map[string]json.RawMessage) (model.ExtractionResult, []string) {
	var x model.ExtractionResult
	var dropped []string

	for key, val := range raw {
		if isJSONNull(val) {
			continue
		}
		var err error
		switch {
		case extractionStrings[key] != nil:
			*extractionStrings[key](&x), err = decodeText(val)
		case extractionCounts[key] != nil:
			var n int
			if n, err = decodeCount(val); err == nil {
				*extractionCounts[key](&x) = &n
			}
		case key == "business_closed":
			x.BusinessClosed, err = decodeFlag(val)
		case key == "profile_locations":
			x.ProfileLocations, err = decodeLocations(val)
		case key == "rejected":
			err = json.Unmarshal(val, &x.Rejected)
		default:
			continue
		}
		if err != nil {
			dropped = append(dropped, key)
		}
	}
	return x, dropped
}

func isJSONNull(val json.RawMessage) bool {
	return strings.TrimSpace(string(val)) == "null"
}

// decodeText accepts a string, a number, or an array of strings joined with
// "; " (hours often come back as one entry per day).
func decodeText(val json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var parts []string
	if err := json.Unmarshal(val, &parts); err == nil {
		var kept []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				kept = append(kept, p)
			}
		}
		return strings.Join(kept, "; "), nil
	}
	var n json.Number
	if err := json.Unmarshal(val, &n); err == nil {
		return n.String(), nil
	}
	return "", eris.New("enrich: not text")
}

// decodeCount accepts a number or an abbreviated count string: "12500",
// "12,500", "12.5K", "1.2M".
func decodeCount(val json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(val, &f); err == nil {
		if f < 0 {
			return 0, eris.New("enrich: negative count")
		}
		return int(math.Round(f)), nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return 0, eris.New("enrich: count is neither number nor string")
	}
	return parseCount(s)
}

func parseCount(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "+")
	for _, suffix := range []string{" followers", " subscribers"} {
		s = strings.TrimSuffix(s, suffix)
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		mult, s = 1e9, strings.TrimSuffix(s, "b")
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, eris.Errorf("enrich: unreadable count %q", s)
	}
	return int(math.Round(f * mult)), nil
}

func decodeFlag(val json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(val, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	return false, eris.New("enrich: not a boolean")
}

// decodeLocations keeps the string-valued entries of the profile location
// object.
func decodeLocations(val json.RawMessage) (map[string]string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		var s string
		if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			out[k] = s
		}
	}
	return out, nil
}
