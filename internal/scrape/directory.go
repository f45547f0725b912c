package scrape

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/extract"
	"github.com/sells-group/lead-enricher/internal/fetch"
	"github.com/sells-group/lead-enricher/internal/model"
)

// Candidate is one organic search result considered for scraping.
type Candidate struct {
	Title string
	URL   string
}

// directoryDomains are listing sites that usually carry contact details.
var directoryDomains = []string{
	"yelp.com", "bbb.org", "linkedin.com", "yellowpages.com", "manta.com",
	"chamberofcommerce.com", "angi.com", "houzz.com", "thumbtack.com",
	"nextdoor.com", "facebook.com", "instagram.com",
}

var searchEngineDomains = []string{
	"google.", "bing.com", "duckduckgo.com", "yahoo.com", "baidu.com", "yandex.",
}

// DirectoryScraper scrapes the most promising organic results.
type DirectoryScraper struct {
	fetcher Fetcher
	limit   int
}

// NewDirectoryScraper creates a DirectoryScraper that scrapes at most limit
// pages per lead.
func NewDirectoryScraper(f Fetcher, limit int) *DirectoryScraper {
	return &DirectoryScraper{fetcher: f, limit: limit}
}

// Select orders results with known directory domains first, then any other
// non-search-engine domain. The lead's own site is dropped; it is covered by
// the website scraper.
func (d *DirectoryScraper) Select(results []Candidate, ownWebsite string) []Candidate {
	own := fetch.Host(ownWebsite)
	var known, other []Candidate
	seen := make(map[string]bool)
	for _, r := range results {
		host := fetch.Host(r.URL)
		if host == "" || seen[r.URL] || isSearchEngine(host) || (own != "" && host == own) {
			continue
		}
		seen[r.URL] = true
		if isDirectory(host) {
			known = append(known, r)
		} else {
			other = append(other, r)
		}
	}
	picked := append(known, other...)
	if len(picked) > d.limit {
		picked = picked[:d.limit]
	}
	return picked
}

// Scrape fetches the selected results and returns one raw source per page
// that could be retrieved.
func (d *DirectoryScraper) Scrape(ctx context.Context, results []Candidate, ownWebsite string) []model.RawDataSource {
	var out []model.RawDataSource
	for _, r := range d.Select(results, ownWebsite) {
		if ctx.Err() != nil {
			break
		}
		page, err := d.fetcher.Get(ctx, r.URL)
		if err != nil {
			zap.L().Debug("scrape: directory page failed", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		html := page.HTML()
		out = append(out, pageSource("directory:"+fetch.Host(r.URL), r.URL, html, extract.FindContacts(html)))
	}
	return out
}

func isDirectory(host string) bool {
	for _, d := range directoryDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isSearchEngine(host string) bool {
	for _, d := range searchEngineDomains {
		if strings.HasPrefix(host, d) || strings.Contains(host, "."+d) {
			return true
		}
	}
	return false
}
