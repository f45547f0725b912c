package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/extract"
	"github.com/sells-group/lead-enricher/internal/fetch"
	"github.com/sells-group/lead-enricher/internal/model"
)

// maxPageText bounds the stripped text kept per page for the extraction prompt.
const maxPageText = 6000

// Fetcher retrieves a single page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

// WebsiteScrape is everything collected from a lead's own website.
type WebsiteScrape struct {
	Sources  []model.RawDataSource
	Contacts extract.Contacts
	HTML     string
	FinalURL string
	Pages    int
}

// WebsiteScraper fetches a site's main page and a few contact-style
// sub-pages.
type WebsiteScraper struct {
	fetcher     Fetcher
	maxSubpages int
}

// NewWebsiteScraper creates a WebsiteScraper.
func NewWebsiteScraper(f Fetcher, maxSubpages int) *WebsiteScraper {
	if maxSubpages < 0 {
		maxSubpages = 0
	}
	return &WebsiteScraper{fetcher: f, maxSubpages: maxSubpages}
}

// Scrape retrieves website and its contact/about pages. Failures are logged
// and yield an empty result; Scrape never returns an error.
func (s *WebsiteScraper) Scrape(ctx context.Context, website string) WebsiteScrape {
	var out WebsiteScrape
	target := fetch.NormalizeURL(website)
	if target == "" {
		return out
	}
	log := zap.L().With(zap.String("url", target))

	page, err := s.fetcher.Get(ctx, target)
	if err != nil {
		log.Debug("scrape: main page failed", zap.Error(err))
		return out
	}

	out.HTML = page.HTML()
	out.FinalURL = page.FinalURL
	out.Pages = 1
	contacts := extract.FindContacts(out.HTML)
	out.Contacts = contacts
	out.Sources = append(out.Sources, pageSource("website", page.FinalURL, out.HTML, contacts))

	for _, link := range extract.ContactPageLinks(out.HTML, page.FinalURL, s.maxSubpages) {
		if ctx.Err() != nil {
			break
		}
		sub, err := s.fetcher.Get(ctx, link)
		if err != nil {
			log.Debug("scrape: sub-page failed", zap.String("link", link), zap.Error(err))
			continue
		}
		html := sub.HTML()
		c := extract.FindContacts(html)
		out.Contacts.Merge(c)
		out.Sources = append(out.Sources, pageSource("website:"+pathOf(link), link, html, c))
		out.Pages++
	}

	return out
}

func pageSource(origin, pageURL, html string, c extract.Contacts) model.RawDataSource {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", pageURL)
	if title := extract.Title(html); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	b.WriteString(c.Summary())
	b.WriteString(truncate(extract.StripHTML(html), maxPageText))
	return model.RawDataSource{Origin: origin, Text: b.String()}
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
