package reviews

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/pkg/anthropic"
	"github.com/sells-group/lead-enricher/pkg/anthropic/mocks"
)

func textResp(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

var longReviews = []Review{
	{Rating: 5, Text: "The croissants are flaky and the staff always remembers my order."},
	{Rating: 2, Text: "Waited twenty minutes on a Saturday morning for a single coffee."},
}

func TestNumericSummary_FewReviews(t *testing.T) {
	s := NumericSummary(4.666, 3)
	assert.Equal(t, 4.7, s.AverageRating)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, SourceNumeric, s.Source)
	require.Len(t, s.TalkingPoints, 1)
	assert.Contains(t, s.TalkingPoints[0], "Only 3 online reviews")
}

func TestNumericSummary_ManyReviews(t *testing.T) {
	s := NumericSummary(4.2, 80)
	assert.Empty(t, s.TalkingPoints)
}

func TestAnalyze_ShortTextsSkipLLM(t *testing.T) {
	ai := mocks.NewMockClient(t)
	a := NewAnalyzer(ai, "claude-haiku-4-5-20251001", 0)

	s := a.Analyze(context.Background(), "Joe's Bakery", 4.5, 2, []Review{{Rating: 5, Text: "Great!"}, {Rating: 4, Text: "Nice place"}})
	assert.Equal(t, SourceNumeric, s.Source)
	assert.Len(t, s.TalkingPoints, 1)
	ai.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnalyze_LLMThemes(t *testing.T) {
	ai := mocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(textResp(`{
		"positive_themes": ["flaky croissants", "friendly staff", "", "cozy", "fresh", "local"],
		"negative_themes": ["weekend wait times"],
		"talking_points": ["Customers love the croissants.", "Weekend lines are a pain point.", "Online ordering could cut waits.", "Reviews mention staff by name.", "Extra"]
	}`), nil)

	s := NewAnalyzer(ai, "claude-haiku-4-5-20251001", 512).Analyze(context.Background(), "Joe's Bakery", 4.46, 120, longReviews)

	assert.Equal(t, SourceLLM, s.Source)
	assert.Equal(t, 4.5, s.AverageRating)
	assert.Equal(t, 120, s.Count)
	assert.Equal(t, []string{"flaky croissants", "friendly staff", "cozy", "fresh"}, s.PositiveThemes)
	assert.Equal(t, []string{"weekend wait times"}, s.NegativeThemes)
	assert.Len(t, s.TalkingPoints, 4)
}

func TestAnalyze_LLMErrorFallsBack(t *testing.T) {
	ai := mocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	s := NewAnalyzer(ai, "m", 0).Analyze(context.Background(), "Joe's Bakery", 4.0, 3, longReviews)
	assert.Equal(t, SourceNumeric, s.Source)
	assert.Len(t, s.TalkingPoints, 1)
}

func TestAnalyze_TooFewTalkingPointsFallsBack(t *testing.T) {
	ai := mocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResp(`{"positive_themes":["x"],"talking_points":["only one"]}`), nil)

	s := NewAnalyzer(ai, "m", 0).Analyze(context.Background(), "Joe's Bakery", 4.0, 30, longReviews)
	assert.Equal(t, SourceNumeric, s.Source)
	assert.Empty(t, s.TalkingPoints)
}

func TestAnalyze_UnparseableFallsBack(t *testing.T) {
	ai := mocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResp("Sorry, I can't help."), nil)

	s := NewAnalyzer(ai, "m", 0).Analyze(context.Background(), "Joe's Bakery", 3.9, 12, longReviews)
	assert.Equal(t, SourceNumeric, s.Source)
}
