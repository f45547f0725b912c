package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/anthropic"
)

// minReviewText is the length a review must exceed to be worth theming.
const minReviewText = 30

const (
	maxThemes        = 4
	minTalkingPoints = 2
	maxTalkingPoints = 4
)

// Summary sources.
const (
	SourceNumeric = "numeric"
	SourceLLM     = "llm"
)

// Review is one customer review.
type Review struct {
	Rating float64
	Text   string
}

const systemPrompt = `You analyze customer reviews of a local business for a salesperson preparing a call.
Use only the reviews provided. Do not invent details.
Respond with a single JSON object and nothing else:
{"positive_themes": [...], "negative_themes": [...], "talking_points": [...]}
- positive_themes: up to 4 short phrases customers praise
- negative_themes: up to 4 short phrases customers complain about
- talking_points: 2 to 4 sentences a salesperson could raise with the owner`

// Analyzer summarizes review sentiment.
type Analyzer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewAnalyzer creates an Analyzer that calls model for theme extraction.
func NewAnalyzer(ai anthropic.Client, model string, maxTokens int64) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Analyzer{ai: ai, model: model, maxTokens: maxTokens}
}

// Analyze returns a review summary. Without substantive review text it
// returns a numeric-only summary; any LLM failure also falls back to it.
func (a *Analyzer) Analyze(ctx context.Context, business string, rating float64, count int, reviews []Review) *model.ReviewSummary {
	numeric := NumericSummary(rating, count)

	texts := substantive(reviews)
	if len(texts) == 0 || a.ai == nil {
		return numeric
	}

	themed, err := a.themes(ctx, business, rating, count, texts)
	if err != nil {
		zap.L().Warn("reviews: theme extraction failed, using numeric summary",
			zap.String("business", business), zap.Error(err))
		return numeric
	}
	themed.AverageRating = numeric.AverageRating
	themed.Count = count
	themed.Source = SourceLLM
	return themed
}

// NumericSummary is the summary built from rating and count alone.
func NumericSummary(rating float64, count int) *model.ReviewSummary {
	s := &model.ReviewSummary{
		AverageRating: math.Round(rating*10) / 10,
		Count:         count,
		Source:        SourceNumeric,
	}
	if count < 5 {
		s.TalkingPoints = []string{lowVolumePoint(count)}
	}
	return s
}

func lowVolumePoint(count int) string {
	switch count {
	case 0:
		return "No online reviews yet; a review-request routine would build credibility quickly."
	case 1:
		return "Only 1 online review so far; a review-request routine would build credibility quickly."
	}
	return fmt.Sprintf("Only %d online reviews so far; a review-request routine would build credibility quickly.", count)
}

func substantive(reviews []Review) []Review {
	var out []Review
	for _, r := range reviews {
		if len(strings.TrimSpace(r.Text)) > minReviewText {
			out = append(out, r)
		}
	}
	return out
}

type themesResponse struct {
	PositiveThemes []string `json:"positive_themes"`
	NegativeThemes []string `json:"negative_themes"`
	TalkingPoints  []string `json:"talking_points"`
}

func (a *Analyzer) themes(ctx context.Context, business string, rating float64, count int, reviews []Review) (*model.ReviewSummary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\nAverage rating: %.1f from %d reviews\n\nReviews:\n", business, rating, count)
	for i, r := range reviews {
		fmt.Fprintf(&b, "%d. (%.0f stars) %s\n", i+1, r.Rating, strings.TrimSpace(r.Text))
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.Prompt(a.model, a.maxTokens, systemPrompt, b.String()))
	if err != nil {
		return nil, eris.Wrap(err, "reviews: create message")
	}
	resp.Usage.LogUsage(a.model, "review_sentiment")

	var out themesResponse
	if err := anthropic.DecodeJSON(resp, &out); err != nil {
		return nil, eris.Wrap(err, "reviews: parse themes")
	}

	points := nonEmpty(out.TalkingPoints, maxTalkingPoints)
	if len(points) < minTalkingPoints {
		return nil, eris.Errorf("reviews: %d talking points, want at least %d", len(points), minTalkingPoints)
	}
	return &model.ReviewSummary{
		PositiveThemes: nonEmpty(out.PositiveThemes, maxThemes),
		NegativeThemes: nonEmpty(out.NegativeThemes, maxThemes),
		TalkingPoints:  points,
	}, nil
}

func nonEmpty(in []string, limit int) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
