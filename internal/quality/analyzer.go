package quality

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/extract"
	"github.com/sells-group/lead-enricher/internal/fetch"
	"github.com/sells-group/lead-enricher/internal/model"
)

// Fetcher retrieves a single page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

var (
	ctaPattern = regexp.MustCompile(`(?i)\b(call (?:now|us|today)|book (?:now|online|an appointment|a table)|schedule (?:now|online|an appointment|a consultation)|get (?:a |your )?(?:free )?(?:quote|estimate)|contact us|order (?:now|online)|request (?:a )?(?:quote|appointment|consultation)|buy now|shop now|sign up|subscribe|free consultation|reserve (?:now|a table))\b`)

	copyrightPattern = regexp.MustCompile(`(?i)(?:©|\(c\)|copyright)[^0-9]{0,20}((?:19|20)\d{2})(?:\s*[-–]\s*((?:19|20)\d{2}))?`)
)

// Analyzer checks a website independently of the scraper and records the
// raw quality measurements.
type Analyzer struct {
	fetcher Fetcher
}

// NewAnalyzer creates an Analyzer. The fetcher should carry the quality
// check timeout.
func NewAnalyzer(f Fetcher) *Analyzer {
	return &Analyzer{fetcher: f}
}

// Analyze fetches website over HTTPS, falling back to HTTP, and measures it.
// An unreachable site yields Reachable=false rather than an error.
func (a *Analyzer) Analyze(ctx context.Context, website string) *model.WebsiteAnalysis {
	target := fetch.NormalizeURL(website)
	out := &model.WebsiteAnalysis{URL: target}
	if target == "" {
		return out
	}
	u, err := url.Parse(target)
	if err != nil {
		return out
	}

	log := zap.L().With(zap.String("url", target))

	u.Scheme = "https"
	page, err := a.fetcher.Get(ctx, u.String())
	if err != nil {
		log.Debug("quality: https check failed, trying http", zap.Error(err))
		u.Scheme = "http"
		page, err = a.fetcher.Get(ctx, u.String())
		if err != nil {
			log.Debug("quality: http check failed", zap.Error(err))
			return out
		}
	}

	out.Reachable = true
	out.FinalURL = page.FinalURL
	out.SSL = page.TLS
	out.LatencyMS = page.Latency.Milliseconds()
	out.HTML = page.HTML()

	doc, err := extract.Parse(out.HTML)
	if err != nil {
		return out
	}
	measure(doc, out)
	return out
}

func measure(doc *goquery.Document, out *model.WebsiteAnalysis) {
	out.HasViewport = extract.MetaContent(doc, "viewport") != ""
	out.HasMetaDescription = extract.MetaContent(doc, "description") != ""
	out.HasForm = doc.Find("form").Length() > 0
	out.SocialLinks = extract.OutboundSocialCount(doc)
	hasCallLink := doc.Find(`a[href^="tel:"], [class*="cta"]`).Length() > 0

	text := extract.VisibleText(doc)
	out.HasCTA = hasCallLink || ctaPattern.MatchString(text)
	out.CopyrightYear = latestCopyrightYear(text)
}

func latestCopyrightYear(text string) int {
	best := 0
	for _, m := range copyrightPattern.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if y, err := strconv.Atoi(g); err == nil && y > best {
				best = y
			}
		}
	}
	return best
}
