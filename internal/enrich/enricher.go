package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/classify"
	"github.com/sells-group/lead-enricher/internal/competitors"
	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/fetch"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/quality"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/internal/reviews"
	"github.com/sells-group/lead-enricher/internal/scrape"
	"github.com/sells-group/lead-enricher/internal/timing"
	"github.com/sells-group/lead-enricher/pkg/anthropic"
	"github.com/sells-group/lead-enricher/pkg/google"
	"github.com/sells-group/lead-enricher/pkg/serper"
)

// Step names recorded in the enrichment log.
const (
	StepWebsiteScrape  = "Website Scrape"
	StepWebSearch      = "Web Search"
	StepPlaces         = "Places Lookup"
	StepDirectory      = "Directory Scrape"
	StepNetwork        = "Professional Network"
	StepExtraction     = "AI Extraction"
	StepWebsiteQuality = "Website Quality"
	StepReviews        = "Review Sentiment"
	StepCompetitors    = "Competitors"
	StepCallTiming     = "Call Timing"
	StepBriefing       = "AI Briefing"
	StepBusinessStatus = "Business Status"
)

const (
	defaultHaikuModel   = "claude-haiku-4-5-20251001"
	defaultSonnetModel  = "claude-sonnet-4-5-20250929"
	directoryPageLimit  = 3
	defaultSearchResult = 10
)

// Enricher runs the acquisition cascade for one lead at a time. It holds no
// per-lead state and is safe for concurrent use.
type Enricher struct {
	cfg *config.Config

	ai             anthropic.Client
	search         serper.Client
	places         google.Client
	fetcher        scrape.Fetcher
	qualityFetcher quality.Fetcher

	website     *scrape.WebsiteScraper
	directory   *scrape.DirectoryScraper
	analyzer    *quality.Analyzer
	extractor   *Extractor
	briefer     *Briefer
	reviews     *reviews.Analyzer
	competitors *competitors.Finder
	timing      *timing.Advisor

	metrics *Metrics
	now     func() time.Time
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithAI overrides the LLM client.
func WithAI(c anthropic.Client) Option { return func(e *Enricher) { e.ai = c } }

// WithSearch supplies a search client, enabling the search-backed layers.
func WithSearch(c serper.Client) Option { return func(e *Enricher) { e.search = c } }

// WithPlaces supplies a places client, enabling place lookup and competitors.
func WithPlaces(c google.Client) Option { return func(e *Enricher) { e.places = c } }

// WithFetcher overrides the page fetcher used by the scrapers.
func WithFetcher(f scrape.Fetcher) Option { return func(e *Enricher) { e.fetcher = f } }

// WithQualityFetcher overrides the fetcher used by the quality check.
func WithQualityFetcher(f quality.Fetcher) Option {
	return func(e *Enricher) { e.qualityFetcher = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Enricher) { e.now = now } }

// WithMetrics records layer outcomes on m.
func WithMetrics(m *Metrics) Option { return func(e *Enricher) { e.metrics = m } }

// anthropicOptions turns optional LLM settings into SDK request options.
func anthropicOptions(c config.AnthropicConfig) []option.RequestOption {
	var opts []option.RequestOption
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return opts
}

// New validates cfg and builds an Enricher. Clients are created from the
// configured credentials; a missing search or places key disables those
// layers. A missing LLM key is a *config.ConfigurationError.
func New(cfg *config.Config, opts ...Option) (*Enricher, error) {
	if cfg == nil {
		return nil, &config.ConfigurationError{Key: "config", Reason: "required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Enricher{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	if e.ai == nil {
		e.ai = anthropic.NewClient(cfg.Anthropic.Key, anthropicOptions(cfg.Anthropic)...)
	}
	if e.search == nil && cfg.Search.Key != "" {
		e.search = serper.NewClient(cfg.Search.Key,
			serper.WithBaseURL(cfg.Search.BaseURL),
			serper.WithTimeout(config.Seconds(cfg.Search.TimeoutSecs, 10*time.Second)),
			serper.WithRateLimit(cfg.Search.RatePerSec),
			serper.WithRetry(resilience.Retries("serper", cfg.Search.Retries)),
		)
	}
	if e.places == nil && cfg.Places.Key != "" {
		e.places = google.NewClient(cfg.Places.Key,
			google.WithBaseURL(cfg.Places.BaseURL),
			google.WithTimeout(config.Seconds(cfg.Places.TimeoutSecs, 10*time.Second)),
			google.WithRateLimit(cfg.Places.RatePerSec),
			google.WithRetry(resilience.Retries("google", cfg.Places.Retries)),
		)
	}
	if e.fetcher == nil {
		e.fetcher = fetch.NewClient(
			fetch.WithTimeout(config.Seconds(cfg.Fetch.TimeoutSecs, fetch.DefaultTimeout)),
			fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
		)
	}
	if e.qualityFetcher == nil {
		e.qualityFetcher = fetch.NewClient(
			fetch.WithTimeout(config.Seconds(cfg.Quality.TimeoutSecs, 6*time.Second)),
			fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
		)
	}

	advisor, err := timing.NewAdvisor()
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load timing table")
	}

	haiku := orDefault(cfg.Anthropic.HaikuModel, defaultHaikuModel)
	sonnet := orDefault(cfg.Anthropic.SonnetModel, defaultSonnetModel)

	e.website = scrape.NewWebsiteScraper(e.fetcher, cfg.Fetch.MaxSubpages)
	e.directory = scrape.NewDirectoryScraper(e.fetcher, directoryPageLimit)
	e.analyzer = quality.NewAnalyzer(e.qualityFetcher)
	e.extractor = NewExtractor(e.ai, haiku, cfg.Anthropic.MaxTokens)
	e.briefer = NewBriefer(e.ai, sonnet, cfg.Anthropic.MaxTokens)
	e.reviews = reviews.NewAnalyzer(e.ai, haiku, 0)
	e.timing = advisor
	if e.places != nil {
		e.competitors = competitors.NewFinder(e.places)
	}
	return e, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Enrich runs every layer for lead in order and returns what it found. It
// never writes anything. A failure inside a layer is logged and the run
// continues; an unexpected failure of the run itself yields a result that
// carries only the lead id and the error.
func (e *Enricher) Enrich(ctx context.Context, lead model.LeadRecord) (res *model.EnrichResult) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: run aborted", zap.Any("panic", r))
			e.metrics.observeLead(leadFailed)
			res = &model.EnrichResult{RunID: runID, LeadID: lead.ID, Error: fmt.Sprintf("enrich: unexpected failure: %v", r)}
		}
	}()

	log.Info("enrich: starting run", zap.String("type", string(lead.Type)))
	start := e.now()

	r := &run{
		e:        e,
		lead:     lead,
		strategy: StrategyFor(lead.Type),
		log:      log,
		audit:    newAuditLog(e.now),
		res: &model.EnrichResult{
			RunID:      runID,
			LeadID:     lead.ID,
			Discovered: map[string]any{},
		},
	}
	r.execute(ctx)

	res = r.res
	res.Log = r.audit.Entries()

	result := leadEnriched
	if res.PermanentlyClosed {
		result = leadClosed
	}
	e.metrics.observeLead(result)
	log.Info("enrich: run complete",
		zap.Bool("permanently_closed", res.PermanentlyClosed),
		zap.Int("discovered", len(res.Discovered)),
		zap.Int("sources", len(res.Sources)),
		zap.Int64("duration_ms", e.now().Sub(start).Milliseconds()),
	)
	return res
}

// run is the state of one lead's pass through the cascade.
type run struct {
	e        *Enricher
	lead     model.LeadRecord
	strategy Strategy
	log      *zap.Logger
	audit    *auditLog
	res      *model.EnrichResult

	sources    []model.RawDataSource
	candidates []scrape.Candidate
	signals    []model.ClosureSignal
	place      *placeFindings
	website    string
}

// runLayer times fn, converts its error or panic into a failed log entry
// and records the outcome.
func (r *run) runLayer(name string, fn func() (model.LogOutcome, string, error)) model.LogOutcome {
	start := time.Now()
	outcome, detail, err := safeLayer(fn)
	elapsed := time.Since(start)

	if err != nil {
		outcome = model.OutcomeFailed
		detail = err.Error()
		r.log.Warn("enrich: layer failed",
			zap.String("layer", name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Error(err),
		)
	} else {
		r.log.Debug("enrich: layer complete",
			zap.String("layer", name),
			zap.String("outcome", string(outcome)),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	}

	r.audit.add(name, outcome, detail)
	r.e.metrics.observeLayer(name, outcome, elapsed)
	return outcome
}

func safeLayer(fn func() (model.LogOutcome, string, error)) (outcome model.LogOutcome, detail string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("enrich: layer panic: %v", p)
		}
	}()
	return fn()
}

func skipped(reason string) (model.LogOutcome, string, error) {
	return model.OutcomeSkipped, reason, nil
}

func (r *run) addSource(src model.RawDataSource) {
	if strings.TrimSpace(src.Text) == "" {
		return
	}
	r.sources = append(r.sources, src)
	r.res.Sources = append(r.res.Sources, src.Origin)
}

// discover records a candidate unless an earlier, more authoritative layer
// already supplied the field.
func (r *run) discover(fields map[string]any) {
	for k, v := range fields {
		if _, ok := r.res.Discovered[k]; ok || isEmpty(v) {
			continue
		}
		r.res.Discovered[k] = v
	}
}

func (r *run) execute(ctx context.Context) {
	r.website = strings.TrimSpace(r.lead.Website)

	r.runLayer(StepWebsiteScrape, func() (model.LogOutcome, string, error) { return r.scrapeWebsite(ctx) })
	r.runLayer(StepWebSearch, func() (model.LogOutcome, string, error) { return r.webSearch(ctx) })
	r.runLayer(StepPlaces, func() (model.LogOutcome, string, error) { return r.lookupPlace(ctx) })
	if r.closedAt() {
		return
	}
	r.runLayer(StepDirectory, func() (model.LogOutcome, string, error) { return r.scrapeDirectories(ctx) })
	r.runLayer(StepNetwork, func() (model.LogOutcome, string, error) { return r.searchNetwork(ctx) })
	r.runLayer(StepExtraction, func() (model.LogOutcome, string, error) { return r.extract(ctx) })
	r.logRejections()
	if r.closedAt() {
		return
	}

	r.runLayer(StepWebsiteQuality, func() (model.LogOutcome, string, error) { return r.assessWebsite(ctx) })
	r.runLayer(StepReviews, func() (model.LogOutcome, string, error) { return r.summarizeReviews(ctx) })
	r.runLayer(StepCompetitors, func() (model.LogOutcome, string, error) { return r.findCompetitors(ctx) })
	r.runLayer(StepCallTiming, func() (model.LogOutcome, string, error) { return r.adviseTiming() })
	r.runLayer(StepBriefing, func() (model.LogOutcome, string, error) { return r.brief(ctx) })

	decision, suspected := ResolveClosure(r.signals)
	r.res.Status = decision
	outcome := model.OutcomeSuccess
	if suspected {
		outcome = model.OutcomeSuspected
	}
	r.audit.add(StepBusinessStatus, outcome, decision.Reasoning)
}

// closedAt resolves the signals gathered so far. A definitive closure is
// recorded and ends the run.
func (r *run) closedAt() bool {
	decision, _ := ResolveClosure(r.signals)
	if !decision.Closed() {
		return false
	}
	r.res.Status = decision
	r.res.PermanentlyClosed = true
	r.audit.add(StepBusinessStatus, model.OutcomeClosed,
		fmt.Sprintf("permanently closed per %s: %s", decision.Source, decision.Reasoning))
	r.log.Info("enrich: business permanently closed, stopping",
		zap.String("source", string(decision.Source)),
		zap.String("reasoning", decision.Reasoning),
	)
	return true
}

func (r *run) scrapeWebsite(ctx context.Context) (model.LogOutcome, string, error) {
	if r.website == "" {
		return skipped("no website on record")
	}
	ws := r.e.website.Scrape(ctx, r.website)
	if len(ws.Sources) == 0 {
		return model.OutcomeFailed, "website unreachable", nil
	}
	for _, s := range ws.Sources {
		r.addSource(s)
	}
	return model.OutcomeSuccess, fmt.Sprintf("%d pages, %d emails, %d phones, %d socials",
		ws.Pages, len(ws.Contacts.Emails), len(ws.Contacts.Phones), len(ws.Contacts.Socials)), nil
}

func (r *run) webSearch(ctx context.Context) (model.LogOutcome, string, error) {
	if r.e.search == nil {
		return skipped("no search credential")
	}
	q := r.strategy.Query(r.lead)
	if q == "" {
		return skipped("nothing to search for")
	}
	resp, err := r.e.search.Search(ctx, serper.Query{Q: q, Num: r.searchResults()})
	if err != nil {
		return "", "", eris.Wrap(err, "enrich: web search")
	}

	f := readSearch(resp)
	r.addSource(f.Source)
	r.candidates = f.Candidates
	r.signals = append(r.signals, f.Signals...)
	if r.website == "" && f.Website != "" {
		r.discover(map[string]any{"website": f.Website})
	}

	detail := fmt.Sprintf("%d results", len(resp.Organic))
	if resp.KnowledgeGraph != nil {
		detail += ", knowledge panel"
	}
	if len(f.Signals) > 0 {
		detail += fmt.Sprintf(", %d closure mentions", len(f.Signals))
	}
	return model.OutcomeSuccess, detail, nil
}

func (r *run) searchResults() int {
	if n := r.e.cfg.Search.Results; n > 0 {
		return n
	}
	return defaultSearchResult
}

func (r *run) lookupPlace(ctx context.Context) (model.LogOutcome, string, error) {
	if !r.strategy.UsesPlaces {
		return skipped("not a business lead")
	}
	if r.e.places == nil {
		return skipped("no places credential")
	}
	resp, err := r.e.places.TextSearch(ctx, joinQuery(r.lead.Name, r.lead.City, r.lead.State))
	if err != nil {
		return "", "", eris.Wrap(err, "enrich: places search")
	}
	match := matchPlace(r.lead.Name, resp.Places)
	if match == nil {
		return skipped(fmt.Sprintf("no matching place among %d results", len(resp.Places)))
	}

	place := match
	if details, err := r.e.places.PlaceDetails(ctx, match.ID); err != nil {
		r.log.Debug("enrich: place details failed, using search result", zap.Error(err))
	} else if details != nil {
		place = details
	}

	f := readPlace(place)
	r.place = &f
	r.addSource(f.Source)
	r.signals = append(r.signals, f.Signals...)
	if r.website != "" {
		delete(f.Fields, "website")
	}
	r.discover(f.Fields)

	if place.BusinessStatus == google.StatusClosedPermanently {
		return model.OutcomeClosed, "place status " + place.BusinessStatus, nil
	}
	return model.OutcomeSuccess, fmt.Sprintf("matched %q, status %s, %d reviews",
		place.DisplayName.Text, orDefault(place.BusinessStatus, "unknown"), place.UserRatingCount), nil
}

func (r *run) scrapeDirectories(ctx context.Context) (model.LogOutcome, string, error) {
	if len(r.candidates) == 0 {
		return skipped("no search results")
	}
	sources := r.e.directory.Scrape(ctx, r.candidates, r.currentWebsite())
	if len(sources) == 0 {
		return model.OutcomeFailed, "no directory pages retrieved", nil
	}
	for _, s := range sources {
		r.addSource(s)
	}
	return model.OutcomeSuccess, fmt.Sprintf("%d directory pages", len(sources)), nil
}

func (r *run) searchNetwork(ctx context.Context) (model.LogOutcome, string, error) {
	if r.e.search == nil {
		return skipped("no search credential")
	}
	if !NetworkEligible(r.strategy, r.lead.Category) {
		return skipped("category not eligible")
	}

	var lines []string
	var failures []string
	for _, q := range networkQueries(r.lead) {
		resp, err := r.e.search.Search(ctx, serper.Query{Q: q.Query, Num: r.searchResults()})
		if err != nil {
			failures = append(failures, q.Field)
			r.log.Debug("enrich: network query failed", zap.String("field", q.Field), zap.Error(err))
			continue
		}
		lines = append(lines, readNetwork(q.Field, resp)...)
	}
	if len(lines) == 0 && len(failures) > 0 {
		return "", "", eris.Errorf("enrich: network search failed for %s", strings.Join(failures, ", "))
	}
	if len(lines) > 0 {
		r.addSource(model.RawDataSource{Origin: "linkedin", Text: "Professional profiles:\n" + strings.Join(lines, "\n")})
	}
	return model.OutcomeSuccess, fmt.Sprintf("%d profile candidates", len(lines)), nil
}

func (r *run) extract(ctx context.Context) (model.LogOutcome, string, error) {
	if len(r.sources) == 0 {
		return skipped("no raw sources")
	}
	x, err := r.e.extractor.Extract(ctx, r.lead, r.strategy, r.sources)
	if err != nil {
		if isParse(err) {
			return model.OutcomeFailed, "unparseable model output, nothing extracted", nil
		}
		return "", "", err
	}

	fields := extractedFields(x)
	if r.website != "" {
		delete(fields, "website")
	}
	before := len(r.res.Discovered)
	r.discover(fields)
	r.res.Rejections = append(r.res.Rejections, x.Rejected...)
	if x.BusinessClosed {
		r.signals = append(r.signals, model.ClosureSignal{
			Source:   model.ClosureExtraction,
			Closed:   true,
			Evidence: "extraction reports the business closed",
		})
	}
	return model.OutcomeSuccess, fmt.Sprintf("%d fields from %d sources, %d rejected",
		len(r.res.Discovered)-before, len(r.sources), len(x.Rejected)), nil
}

func (r *run) logRejections() {
	for _, rj := range r.res.Rejections {
		r.audit.add(StepExtraction, model.OutcomeRejected, fmt.Sprintf("%s %s: %s", rj.Field, rj.Value, rj.Reason))
	}
}

func (r *run) currentWebsite() string {
	if r.website != "" {
		return r.website
	}
	if w, ok := r.res.Discovered["website"].(string); ok {
		return w
	}
	return ""
}

func (r *run) assessWebsite(ctx context.Context) (model.LogOutcome, string, error) {
	site := r.currentWebsite()
	r.res.SiteStatus = model.SiteNone
	if site == "" {
		return skipped("no website known")
	}

	a := r.e.analyzer.Analyze(ctx, site)
	rep := r.reputation()
	scores := quality.Score(a, rep, r.e.now())

	r.res.Analysis = a
	r.res.Scores = &scores
	r.res.SiteStatus = classify.SiteStatus(site, a)
	r.res.TechStack = []string{}
	if a.Reachable {
		r.res.TechStack = classify.TechStack(a.HTML)
	}
	return model.OutcomeSuccess, fmt.Sprintf("composite %d, site %s, %d technologies",
		scores.Composite, r.res.SiteStatus, len(r.res.TechStack)), nil
}

// reputation gathers the off-site presence inputs from the place listing,
// falling back to what the lead already has.
func (r *run) reputation() model.Reputation {
	var rep model.Reputation
	if r.place != nil && r.place.Count > 0 {
		rep.Rating, rep.ReviewCount = r.place.Rating, r.place.Count
	} else {
		if r.lead.Rating != nil {
			rep.Rating = *r.lead.Rating
		}
		if r.lead.ReviewCount != nil {
			rep.ReviewCount = *r.lead.ReviewCount
		}
	}
	current := r.lead.Fields()
	for _, f := range []string{"instagram", "facebook", "twitter", "tiktok", "youtube", "company_linkedin"} {
		if !isEmpty(current[f]) || !isEmpty(r.res.Discovered[f]) {
			rep.SocialPlatforms++
		}
	}
	return rep
}

func (r *run) summarizeReviews(ctx context.Context) (model.LogOutcome, string, error) {
	var (
		rating float64
		count  int
		texts  []reviews.Review
	)
	switch {
	case r.place != nil && r.place.Count > 0:
		rating, count, texts = r.place.Rating, r.place.Count, r.place.Reviews
	case r.lead.Rating != nil:
		rating = *r.lead.Rating
		if r.lead.ReviewCount != nil {
			count = *r.lead.ReviewCount
		}
	default:
		return skipped("no rating data")
	}

	s := r.e.reviews.Analyze(ctx, r.lead.Name, rating, count, texts)
	r.res.ReviewSummary = s
	return model.OutcomeSuccess, fmt.Sprintf("%s summary, %.1f from %d reviews", s.Source, s.AverageRating, s.Count), nil
}

func (r *run) findCompetitors(ctx context.Context) (model.LogOutcome, string, error) {
	if !r.strategy.UsesPlaces {
		return skipped("not a business lead")
	}
	if r.e.competitors == nil {
		return skipped("no places credential")
	}
	if r.lead.Category == "" || r.lead.City == "" {
		return skipped("category or city missing")
	}
	found, err := r.e.competitors.Find(ctx, r.lead.Category, r.lead.City, r.lead.Name)
	if err != nil {
		return "", "", err
	}
	r.res.Competitors = found
	return model.OutcomeSuccess, fmt.Sprintf("%d competitors", len(found)), nil
}

func (r *run) adviseTiming() (model.LogOutcome, string, error) {
	w, ok := r.e.timing.Window(r.lead.Type, r.lead.Category)
	if !ok {
		return skipped("no timing data for lead")
	}
	r.res.BestTimeToCall = w
	return model.OutcomeSuccess, w, nil
}

func (r *run) brief(ctx context.Context) (model.LogOutcome, string, error) {
	merged := mergedView(r.lead, r.res, r.e.now())
	br, err := r.e.briefer.Synthesize(ctx, r.strategy, BriefingInput{
		Lead:          merged,
		Scores:        r.res.Scores,
		SiteStatus:    r.res.SiteStatus,
		TechStack:     r.res.TechStack,
		ReviewSummary: r.res.ReviewSummary,
		Competitors:   r.res.Competitors,
		TimingWindow:  r.res.BestTimeToCall,
	})
	if err != nil {
		return "", "", err
	}
	r.res.Briefing = br
	return model.OutcomeSuccess, "recommended channel " + string(br.RecommendedChannel), nil
}
