package competitors

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/google"
)

// MaxCompetitors caps the snapshot list.
const MaxCompetitors = 5

// Finder looks up nearby businesses in the same category.
type Finder struct {
	places google.Client
}

// NewFinder creates a Finder backed by the places client.
func NewFinder(places google.Client) *Finder {
	return &Finder{places: places}
}

// Find returns up to five "<category> in <city>" results, excluding the lead
// itself by case-insensitive name. The list is context for the briefing only.
func (f *Finder) Find(ctx context.Context, category, city, leadName string) ([]model.CompetitorSnapshot, error) {
	category = strings.TrimSpace(category)
	city = strings.TrimSpace(city)
	if category == "" || city == "" {
		return nil, nil
	}

	resp, err := f.places.TextSearch(ctx, category+" in "+city)
	if err != nil {
		return nil, eris.Wrap(err, "competitors: text search")
	}

	self := strings.ToLower(strings.TrimSpace(leadName))
	var out []model.CompetitorSnapshot
	for _, p := range resp.Places {
		name := strings.TrimSpace(p.DisplayName.Text)
		if name == "" || strings.ToLower(name) == self {
			continue
		}
		out = append(out, model.CompetitorSnapshot{
			Name:        name,
			Rating:      p.Rating,
			ReviewCount: p.UserRatingCount,
			HasWebsite:  p.WebsiteURI != "",
			Address:     p.FormattedAddress,
		})
		if len(out) == MaxCompetitors {
			break
		}
	}
	return out, nil
}
