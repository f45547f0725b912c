package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/fetch"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/anthropic"
	aimocks "github.com/sells-group/lead-enricher/pkg/anthropic/mocks"
	"github.com/sells-group/lead-enricher/pkg/google"
	googlemocks "github.com/sells-group/lead-enricher/pkg/google/mocks"
	"github.com/sells-group/lead-enricher/pkg/serper"
	serpermocks "github.com/sells-group/lead-enricher/pkg/serper/mocks"
)

const (
	haikuModel  = "haiku-test"
	sonnetModel = "sonnet-test"
)

var fixedNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

const exampleBizHTML = `<!DOCTYPE html>
<html><head>
<title>Example Biz Plumbing | Austin, TX</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="description" content="Family-owned plumbing and drain repair serving Austin since 1998.">
</head><body>
<h1>Example Biz Plumbing</h1>
<p>Family-owned plumbing, water heater installation and drain repair serving Austin and the surrounding
neighborhoods since 1998. Licensed, insured and on call for emergencies seven days a week.</p>
<p>Call now: (512) 555-0142 or write to hello@example-biz.com for a free estimate.</p>
<form action="/quote"><input name="email"><button>Request a quote</button></form>
<footer>© 2025 Example Biz LLC</footer>
</body></html>`

// stubFetcher serves canned pages by exact URL.
type stubFetcher struct {
	pages map[string]string
	panic bool
}

func (s *stubFetcher) Get(_ context.Context, url string) (*fetch.Page, error) {
	if s.panic {
		panic("fetcher exploded")
	}
	body, ok := s.pages[url]
	if !ok {
		return nil, &fetch.RetrievalError{URL: url, Err: errors.New("no such host")}
	}
	return &fetch.Page{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Body:       []byte(body),
		Latency:    180 * time.Millisecond,
		TLS:        strings.HasPrefix(url, "https://"),
	}, nil
}

func exampleBizFetcher() *stubFetcher {
	return &stubFetcher{pages: map[string]string{"https://example-biz.com": exampleBizHTML}}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Anthropic.Key = "sk-ant-test"
	cfg.Anthropic.HaikuModel = haikuModel
	cfg.Anthropic.SonnetModel = sonnetModel
	cfg.Batch.MaxSize = config.MaxBatchSize
	cfg.Batch.Concurrency = 2
	cfg.Fetch.MaxSubpages = 3
	return cfg
}

func textResp(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

func forModel(model string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool { return req.Model == model })
}

func expectExtraction(ai *aimocks.MockClient, body string) *mock.Call {
	return ai.On("CreateMessage", mock.Anything, forModel(haikuModel)).Return(textResp(body), nil)
}

func expectBriefing(ai *aimocks.MockClient) *mock.Call {
	return ai.On("CreateMessage", mock.Anything, forModel(sonnetModel)).Return(textResp(`{
		"summary": "A family-owned plumbing company in Austin with a dated but functional website.",
		"talking_points": ["Emergency calls depend on the phone line.", "The site has no online booking.", "Reviews praise punctuality."],
		"recommended_channel": "phone",
		"channel_reason": "The owner answers the business line directly.",
		"objections": ["We get enough work from referrals."],
		"best_time_to_call": "Any weekday"
	}`), nil)
}

func newTestEnricher(t *testing.T, opts ...Option) *Enricher {
	t.Helper()
	base := []Option{WithClock(func() time.Time { return fixedNow })}
	e, err := New(testConfig(), append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func stepEntries(res *model.EnrichResult, step string) []model.EnrichmentLogEntry {
	var out []model.EnrichmentLogEntry
	for _, e := range res.Log {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

func TestNew_MissingLLMKeyIsConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.Key = ""

	_, err := New(cfg)
	require.Error(t, err)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "anthropic.key", cfgErr.Key)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNew_OptionalKeysDisableLayers(t *testing.T) {
	e := newTestEnricher(t, WithAI(aimocks.NewMockClient(t)))
	assert.Nil(t, e.search)
	assert.Nil(t, e.places)
	assert.Nil(t, e.competitors)
}

func TestNew_KeysBuildClients(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Key = "serper-key"
	cfg.Places.Key = "places-key"

	e, err := New(cfg, WithAI(aimocks.NewMockClient(t)))
	require.NoError(t, err)
	assert.NotNil(t, e.search)
	assert.NotNil(t, e.places)
	assert.NotNil(t, e.competitors)
}

func TestNew_LLMBaseURLIsUsed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Path, "/messages")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_1", "type": "message", "role": "assistant", "model": haikuModel,
			"content":     []map[string]any{{"type": "text", "text": "{}"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Anthropic.BaseURL = srv.URL
	e, err := New(cfg)
	require.NoError(t, err)

	_, err = e.ai.CreateMessage(context.Background(), anthropic.Prompt(haikuModel, 16, "rules", "hi"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnthropicOptions(t *testing.T) {
	assert.Empty(t, anthropicOptions(config.AnthropicConfig{Key: "k"}))
	assert.Len(t, anthropicOptions(config.AnthropicConfig{Key: "k", BaseURL: "http://localhost:9"}), 1)
}

func TestEnrich_NoWebsiteNoSearchDiscoversNothing(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(&stubFetcher{}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Corner Plumbing", Category: "plumbing", City: "Austin",
	})

	require.NotNil(t, res)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Discovered)
	assert.Empty(t, res.Sources)
	assert.False(t, res.PermanentlyClosed)
	assert.Equal(t, model.SiteNone, res.SiteStatus)

	require.Len(t, stepEntries(res, StepWebsiteScrape), 1)
	assert.Equal(t, model.OutcomeSkipped, stepEntries(res, StepWebsiteScrape)[0].Outcome)
	assert.Equal(t, model.OutcomeSkipped, stepEntries(res, StepWebSearch)[0].Outcome)
	assert.Equal(t, model.OutcomeSkipped, stepEntries(res, StepExtraction)[0].Outcome)
}

func TestEnrich_ExampleBizFillsPhone(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{"phone": "(512) 555-0142", "email": "hello@example-biz.com"}`).Once()
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(exampleBizFetcher()), WithQualityFetcher(exampleBizFetcher()))
	lead := model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", State: "TX", Website: "example-biz.com",
	}
	res := e.Enrich(context.Background(), lead)

	require.Empty(t, res.Error)
	assert.Equal(t, "(512) 555-0142", res.Discovered["phone"])
	assert.Equal(t, "hello@example-biz.com", res.Discovered["email"])
	assert.Equal(t, []string{"website"}, res.Sources)

	scrape := stepEntries(res, StepWebsiteScrape)
	require.Len(t, scrape, 1)
	assert.Equal(t, model.OutcomeSuccess, scrape[0].Outcome)
	assert.Contains(t, scrape[0].Detail, "1 phones")
	assert.Contains(t, scrape[0].Detail, "1 emails")

	require.NotNil(t, res.Scores)
	assert.Equal(t, model.SiteLive, res.SiteStatus)
	assert.Equal(t, 100, res.Scores.Mobile)

	require.NotNil(t, res.Briefing)
	assert.Equal(t, res.BestTimeToCall, res.Briefing.BestTimeToCall)
	assert.Contains(t, res.BestTimeToCall, "outside job hours")

	update := BuildUpdate(lead, res, fixedNow)
	assert.Equal(t, "(512) 555-0142", update["phone"])
	assert.Equal(t, res.Scores.Composite, update["website_score"])
}

func TestEnrich_ExistingPhoneIsKept(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{"phone": "(512) 555-0142"}`).Once()
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(exampleBizFetcher()), WithQualityFetcher(exampleBizFetcher()))
	lead := model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", Website: "example-biz.com", Phone: "(512) 555-9999",
	}
	res := e.Enrich(context.Background(), lead)

	update := BuildUpdate(lead, res, fixedNow)
	_, written := update["phone"]
	assert.False(t, written)
	assert.Equal(t, "(512) 555-9999", ApplyUpdate(lead, update).Phone)
}

func TestEnrich_LocationMismatchRejected(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{
		"instagram": "https://instagram.com/examplebizmiami",
		"facebook": "https://facebook.com/examplebiz",
		"profile_locations": {"instagram": "Miami, FL", "facebook": "Austin, TX"}
	}`).Once()
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(exampleBizFetcher()), WithQualityFetcher(exampleBizFetcher()))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", Website: "example-biz.com",
	})

	_, hasInstagram := res.Discovered["instagram"]
	assert.False(t, hasInstagram)
	assert.Equal(t, "https://facebook.com/examplebiz", res.Discovered["facebook"])

	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "instagram", res.Rejections[0].Field)

	var rejected []model.EnrichmentLogEntry
	for _, entry := range stepEntries(res, StepExtraction) {
		if entry.Outcome == model.OutcomeRejected {
			rejected = append(rejected, entry)
		}
	}
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Detail, "instagram")
	assert.Contains(t, rejected[0].Detail, "location mismatch")
}

func TestEnrich_PlacesClosedShortCircuits(t *testing.T) {
	ai := aimocks.NewMockClient(t) // no expectations: any LLM call fails the test
	places := googlemocks.NewMockClient(t)
	closedPlace := google.Place{
		ID:             "place-1",
		DisplayName:    google.DisplayName{Text: "Joe's Diner"},
		BusinessStatus: google.StatusClosedPermanently,
	}
	places.On("TextSearch", mock.Anything, "Joe's Diner Austin TX").
		Return(&google.TextSearchResponse{Places: []google.Place{closedPlace}}, nil).Once()
	places.On("PlaceDetails", mock.Anything, "place-1").Return(&closedPlace, nil).Once()

	e := newTestEnricher(t, WithAI(ai), WithPlaces(places), WithFetcher(&stubFetcher{}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Joe's Diner", Category: "diner", City: "Austin", State: "TX",
	})

	assert.True(t, res.PermanentlyClosed)
	assert.Equal(t, model.StatusPermanentlyClosed, res.Status.Status)
	assert.Equal(t, model.ClosurePlacesStatus, res.Status.Source)
	assert.Nil(t, res.Briefing)

	last := res.Log[len(res.Log)-1]
	assert.Equal(t, StepBusinessStatus, last.Step)
	assert.Equal(t, model.OutcomeClosed, last.Outcome)

	for _, step := range []string{StepDirectory, StepNetwork, StepExtraction, StepWebsiteQuality, StepCompetitors, StepBriefing} {
		assert.Empty(t, stepEntries(res, step), step)
	}
}

func TestEnrich_KnowledgePanelClosure(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	search := serpermocks.NewMockClient(t)
	search.On("Search", mock.Anything, serper.Query{Q: `"Old Mill Cafe" Austin TX`, Num: defaultSearchResult}).
		Return(&serper.Response{KnowledgeGraph: &serper.KnowledgeGraph{
			Title:       "Old Mill Cafe",
			Type:        "Cafe",
			Description: "Permanently closed",
		}}, nil).Once()

	e := newTestEnricher(t, WithAI(ai), WithSearch(search), WithFetcher(&stubFetcher{}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Old Mill Cafe", Category: "cafe", City: "Austin", State: "TX",
	})

	assert.True(t, res.PermanentlyClosed)
	assert.Equal(t, model.ClosureKnowledgePanel, res.Status.Source)
}

func TestEnrich_SnippetAloneIsOnlySuspected(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{"address": "12 Main St, Austin, TX"}`).Once()
	expectBriefing(ai).Once()

	search := serpermocks.NewMockClient(t)
	search.On("Search", mock.Anything, mock.Anything).Return(&serper.Response{Organic: []serper.Organic{{
		Title:   "Old Mill Cafe reviews",
		Link:    "https://www.yelp.com/biz/old-mill-cafe-austin",
		Snippet: "One reviewer thought it was permanently closed, but it reopened at 12 Main St.",
	}}}, nil).Once()

	e := newTestEnricher(t, WithAI(ai), WithSearch(search), WithFetcher(&stubFetcher{}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Old Mill Cafe", Category: "cafe", City: "Austin",
	})

	assert.False(t, res.PermanentlyClosed)
	assert.Equal(t, model.StatusOpen, res.Status.Status)
	status := stepEntries(res, StepBusinessStatus)
	require.Len(t, status, 1)
	assert.Equal(t, model.OutcomeSuspected, status[0].Outcome)
	assert.Equal(t, model.OutcomeFailed, stepEntries(res, StepDirectory)[0].Outcome)
	assert.Equal(t, "12 Main St, Austin, TX", res.Discovered["address"])
}

func TestEnrich_PlacesFieldsAndCompetitors(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{"phone": "(512) 555-0100", "owner_name": "Joe Rivera"}`).Once()
	expectBriefing(ai).Once()

	places := googlemocks.NewMockClient(t)
	place := google.Place{
		ID:                  "place-7",
		DisplayName:         google.DisplayName{Text: "Joe's Bakery LLC"},
		BusinessStatus:      google.StatusOperational,
		FormattedAddress:    "400 Congress Ave, Austin, TX",
		NationalPhoneNumber: "(512) 555-0142",
		Rating:              4.6,
		UserRatingCount:     212,
		RegularOpeningHours: &google.OpeningHours{WeekdayDescriptions: []string{"Monday: 7 AM–3 PM", "Tuesday: 7 AM–3 PM"}},
		Reviews:             []google.Review{{Rating: 5, Text: google.DisplayName{Text: "Great!"}}},
	}
	places.On("TextSearch", mock.Anything, "Joe's Bakery Austin").
		Return(&google.TextSearchResponse{Places: []google.Place{place}}, nil).Once()
	places.On("PlaceDetails", mock.Anything, "place-7").Return(&place, nil).Once()
	places.On("TextSearch", mock.Anything, "bakery in Austin").
		Return(&google.TextSearchResponse{Places: []google.Place{
			{DisplayName: google.DisplayName{Text: "Joe's Bakery"}},
			{DisplayName: google.DisplayName{Text: "Sugar Mama's"}, Rating: 4.4, UserRatingCount: 90, WebsiteURI: "https://sugarmamas.com"},
		}}, nil).Once()

	e := newTestEnricher(t, WithAI(ai), WithPlaces(places), WithFetcher(&stubFetcher{}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Joe's Bakery", Category: "bakery", City: "Austin",
	})

	require.Empty(t, res.Error)
	// The verified place phone wins over the extraction candidate.
	assert.Equal(t, "(512) 555-0142", res.Discovered["phone"])
	assert.Equal(t, "Joe Rivera", res.Discovered["owner_name"])
	assert.Equal(t, "Monday: 7 AM–3 PM; Tuesday: 7 AM–3 PM", res.Discovered["hours"])
	assert.Equal(t, 4.6, res.Discovered["rating"])
	assert.Equal(t, 212, res.Discovered["review_count"])
	assert.Equal(t, google.StatusOperational, res.Discovered["business_status"])

	require.NotNil(t, res.ReviewSummary)
	assert.Equal(t, 4.6, res.ReviewSummary.AverageRating)
	require.Len(t, res.Competitors, 1)
	assert.Equal(t, "Sugar Mama's", res.Competitors[0].Name)
	assert.Equal(t, model.OutcomeSuccess, stepEntries(res, StepBusinessStatus)[0].Outcome)
	assert.Equal(t, "Joe Rivera", res.OwnerName())
}

func TestEnrich_LayerPanicIsContained(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(&stubFetcher{panic: true}), WithQualityFetcher(&stubFetcher{}))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", Website: "example-biz.com",
	})

	assert.Empty(t, res.Error)
	scrape := stepEntries(res, StepWebsiteScrape)
	require.Len(t, scrape, 1)
	assert.Equal(t, model.OutcomeFailed, scrape[0].Outcome)
	assert.Contains(t, scrape[0].Detail, "panic")
	assert.NotNil(t, res.Briefing)
}

func TestEnrich_ExtractionParseFailureIsLogged(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, "I could not find anything useful.").Once()
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(exampleBizFetcher()), WithQualityFetcher(exampleBizFetcher()))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", Website: "example-biz.com",
	})

	assert.Empty(t, res.Error)
	assert.Empty(t, res.Discovered)
	ex := stepEntries(res, StepExtraction)
	require.Len(t, ex, 1)
	assert.Equal(t, model.OutcomeFailed, ex[0].Outcome)
	assert.Contains(t, ex[0].Detail, "nothing extracted")
}

func TestEnrich_LogIsOrdered(t *testing.T) {
	ai := aimocks.NewMockClient(t)
	expectExtraction(ai, `{}`).Once()
	expectBriefing(ai).Once()

	e := newTestEnricher(t, WithAI(ai), WithFetcher(exampleBizFetcher()), WithQualityFetcher(exampleBizFetcher()))
	res := e.Enrich(context.Background(), model.LeadRecord{
		ID: "lead-1", Type: model.LeadTypeBusiness, Name: "Example Biz", Category: "plumbing",
		City: "Austin", Website: "example-biz.com",
	})

	var steps []string
	for _, entry := range res.Log {
		steps = append(steps, entry.Step)
	}
	assert.Equal(t, []string{
		StepWebsiteScrape, StepWebSearch, StepPlaces, StepDirectory, StepNetwork, StepExtraction,
		StepWebsiteQuality, StepReviews, StepCompetitors, StepCallTiming, StepBriefing, StepBusinessStatus,
	}, steps)
	for _, entry := range res.Log {
		assert.Equal(t, fixedNow, entry.Timestamp)
	}
}
