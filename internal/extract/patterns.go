package extract

import "regexp"

// EmailPatterns match candidate addresses in raw markup and text.
var EmailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,24}\b`),
}

// Email post-filters: asset names that look like addresses ("logo@2x.png")
// and placeholder or vendor domains that never belong to the business.
var (
	emailBadSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}
	emailBadDomains  = map[string]bool{
		"example.com":    true,
		"sentry.io":      true,
		"wixpress.com":   true,
		"domain.com":     true,
		"email.com":      true,
		"yourdomain.com": true,
		"yoursite.com":   true,
		"godaddy.com":    true,
	}
)

// PhonePatterns match North American and international numbers. Matches are
// kept only with 10 to 15 significant digits.
var PhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\+?1[\s\-.]?)?(?:\(\s*\d{3}\s*\)|\b\d{3})[\s\-.]?\d{3}[\s\-.]?\d{4}\b`),
	regexp.MustCompile(`\+\d{1,3}[\s\-.]?\d{2,4}[\s\-.]?\d{3,4}[\s\-.]?\d{3,4}\b`),
}

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// SocialPattern recognizes one platform's profile links. Field is the lead
// field the profile populates; Exclude lists first path segments that are
// share widgets or marketing paths rather than profiles.
type SocialPattern struct {
	Field     string
	Pattern   *regexp.Regexp
	Canonical string
	Exclude   map[string]bool
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// SocialPatterns is evaluated in order; the first profile per field wins.
var SocialPatterns = []SocialPattern{
	{
		Field:     "instagram",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/([a-z0-9_.]{1,30})`),
		Canonical: "https://www.instagram.com/%s",
		Exclude:   set("p", "reel", "reels", "explore", "accounts", "stories", "tv", "sharer", "share", "direct"),
	},
	{
		Field:     "facebook",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:www\.|m\.|web\.)?facebook\.com/([a-z0-9.\-]{2,})`),
		Canonical: "https://www.facebook.com/%s",
		Exclude:   set("sharer", "sharer.php", "share", "share.php", "plugins", "dialog", "tr", "events", "groups", "hashtag", "watch", "login", "profile.php", "pages"),
	},
	{
		Field:     "twitter",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter|x)\.com/([a-z0-9_]{1,15})`),
		Canonical: "https://x.com/%s",
		Exclude:   set("intent", "share", "home", "hashtag", "search", "i", "login", "widgets"),
	},
	{
		Field:     "tiktok",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/@([a-z0-9_.]{2,24})`),
		Canonical: "https://www.tiktok.com/@%s",
	},
	{
		Field:     "youtube",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/((?:@|c/|channel/|user/)[a-z0-9_.\-]+)`),
		Canonical: "https://www.youtube.com/%s",
		Exclude:   set("watch", "embed", "shorts"),
	},
	{
		Field:     "owner_linkedin",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:[a-z]{2,3}\.)?linkedin\.com/in/([a-z0-9_\-%]{3,100})`),
		Canonical: "https://www.linkedin.com/in/%s",
	},
	{
		Field:     "company_linkedin",
		Pattern:   regexp.MustCompile(`(?i)https?://(?:[a-z]{2,3}\.)?linkedin\.com/company/([a-z0-9_\-%]{2,100})`),
		Canonical: "https://www.linkedin.com/company/%s",
	},
}
