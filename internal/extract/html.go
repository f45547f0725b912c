package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse builds a goquery document from markup. Malformed HTML is tolerated
// by the parser; an error only surfaces for unreadable input.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// StripHTML returns the visible text of html with script, style and other
// non-content elements removed and whitespace collapsed.
func StripHTML(html string) string {
	doc, err := Parse(html)
	if err != nil {
		return ""
	}
	return VisibleText(doc)
}

// VisibleText is StripHTML over an already parsed document. It mutates doc.
func VisibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, iframe, template").Remove()
	var parts []string
	doc.Find("title, body").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	if len(parts) == 0 {
		parts = append(parts, doc.Text())
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Title returns the trimmed <title> of html.
func Title(html string) string {
	doc, err := Parse(html)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// TelLinks returns the numbers behind tel: anchors.
func TelLinks(html string) []string {
	doc, err := Parse(html)
	if err != nil {
		return nil
	}
	var out []string
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if raw := strings.TrimSpace(strings.TrimPrefix(href, "tel:")); raw != "" {
			out = append(out, raw)
		}
	})
	return out
}

// MetaContent returns the content attribute of the first <meta name=...>.
func MetaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, _ := s.Attr("name")
		if !strings.EqualFold(n, name) {
			return true
		}
		content, _ = s.Attr("content")
		content = strings.TrimSpace(content)
		return false
	})
	return content
}
