package competitors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/pkg/google"
	"github.com/sells-group/lead-enricher/pkg/google/mocks"
)

func TestFind_ExcludesLeadAndCaps(t *testing.T) {
	places := []google.Place{
		{DisplayName: google.DisplayName{Text: "JOE'S BAKERY"}, Rating: 4.4},
	}
	for i := 1; i <= 7; i++ {
		p := google.Place{
			DisplayName:     google.DisplayName{Text: fmt.Sprintf("Bakery %d", i)},
			Rating:          4.0,
			UserRatingCount: i * 10,
		}
		if i%2 == 0 {
			p.WebsiteURI = "https://bakery.example"
		}
		places = append(places, p)
	}

	pc := mocks.NewMockClient(t)
	pc.On("TextSearch", mock.Anything, "bakery in Austin").Return(&google.TextSearchResponse{Places: places}, nil)

	got, err := NewFinder(pc).Find(context.Background(), "bakery", "Austin", "Joe's Bakery")
	require.NoError(t, err)
	require.Len(t, got, MaxCompetitors)
	assert.Equal(t, "Bakery 1", got[0].Name)
	assert.False(t, got[0].HasWebsite)
	assert.True(t, got[1].HasWebsite)
	assert.Equal(t, 20, got[1].ReviewCount)
}

func TestFind_MissingInputs(t *testing.T) {
	pc := mocks.NewMockClient(t)
	got, err := NewFinder(pc).Find(context.Background(), "", "Austin", "Joe's")
	assert.NoError(t, err)
	assert.Nil(t, got)
	pc.AssertNotCalled(t, "TextSearch", mock.Anything, mock.Anything)
}

func TestFind_Error(t *testing.T) {
	pc := mocks.NewMockClient(t)
	pc.On("TextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	_, err := NewFinder(pc).Find(context.Background(), "bakery", "Austin", "Joe's")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "competitors: text search")
}
