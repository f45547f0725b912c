package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var contactKeywords = []string{"contact", "about", "team", "staff", "location", "our-story", "meet"}

// ContactPageLinks returns up to limit same-host URLs whose path or anchor
// text suggests a contact, about or team page.
func ContactPageLinks(html, base string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return nil
	}
	doc, err := Parse(html)
	if err != nil {
		return nil
	}
	baseHost := strings.TrimPrefix(strings.ToLower(baseURL.Hostname()), "www.")
	self := strings.TrimSuffix(baseURL.Path, "/")

	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := baseURL.ResolveReference(ref)
		if strings.TrimPrefix(strings.ToLower(abs.Hostname()), "www.") != baseHost {
			return true
		}
		abs.RawQuery = ""
		abs.Fragment = ""
		path := strings.TrimSuffix(abs.Path, "/")
		if path == self || path == "" {
			return true
		}
		if !matchesContact(strings.ToLower(path) + " " + strings.ToLower(s.Text())) {
			return true
		}
		key := abs.String()
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, key)
		return len(out) < limit
	})
	return out
}

func matchesContact(s string) bool {
	for _, k := range contactKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// OutboundSocialCount returns the number of distinct social platforms the
// document links to.
func OutboundSocialCount(doc *goquery.Document) int {
	var hrefs strings.Builder
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		hrefs.WriteString(href)
		hrefs.WriteByte('\n')
	})
	platforms := make(map[string]bool)
	for field := range FindSocials(hrefs.String()) {
		if field == "owner_linkedin" || field == "company_linkedin" {
			field = "linkedin"
		}
		platforms[field] = true
	}
	return len(platforms)
}
