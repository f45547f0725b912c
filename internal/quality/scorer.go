package quality

import (
	"time"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Composite weights in percent. They sum to 100.
const (
	weightTechnical = 20
	weightDesign    = 25
	weightContent   = 20
	weightMobile    = 15
	weightPresence  = 20
)

// DefaultDesignScore is used until a visual model rates design.
const DefaultDesignScore = 50

// Score computes the five sub-scores and the composite. It is a pure function
// of its inputs; asOf only anchors the copyright freshness bucket.
func Score(a *model.WebsiteAnalysis, rep model.Reputation, asOf time.Time) model.WebsiteScores {
	if a == nil {
		a = &model.WebsiteAnalysis{}
	}
	s := model.WebsiteScores{
		Technical: technical(a),
		Content:   content(a, asOf.Year()),
		Mobile:    mobile(a),
		Presence:  presence(a, rep),
		Design:    DefaultDesignScore,
	}
	s.Composite = Composite(s)
	return s
}

// Composite blends the sub-scores with the fixed weights, rounding half up.
// The arithmetic is done in integer hundredths so results never depend on
// floating point.
func Composite(s model.WebsiteScores) int {
	sum := weightTechnical*s.Technical +
		weightDesign*s.Design +
		weightContent*s.Content +
		weightMobile*s.Mobile +
		weightPresence*s.Presence
	return clamp((sum + 50) / 100)
}

func technical(a *model.WebsiteAnalysis) int {
	score := 0
	if a.SSL {
		score += 25
	}
	if a.Reachable {
		score += 25
		switch {
		case a.LatencyMS < 1000:
			score += 25
		case a.LatencyMS < 3000:
			score += 15
		default:
			score += 5
		}
	}
	if a.HasViewport {
		score += 25
	}
	return clamp(score)
}

func content(a *model.WebsiteAnalysis, year int) int {
	score := 0
	if a.HasMetaDescription {
		score += 20
	}
	if a.HasCTA {
		score += 20
	}
	if a.HasForm {
		score += 20
	}
	if a.SocialLinks > 0 {
		score += 15
	}
	if a.CopyrightYear > 0 {
		switch age := year - a.CopyrightYear; {
		case age <= 1:
			score += 25
		case age <= 3:
			score += 15
		default:
			score += 5
		}
	}
	return clamp(score)
}

func mobile(a *model.WebsiteAnalysis) int {
	if a.HasViewport {
		return 100
	}
	return 0
}

func presence(a *model.WebsiteAnalysis, rep model.Reputation) int {
	score := 0
	if a.Reachable {
		score += 25
	}
	switch {
	case rep.Rating >= 4.5:
		score += 25
	case rep.Rating >= 4.0:
		score += 20
	case rep.Rating >= 3.5:
		score += 10
	case rep.Rating > 0:
		score += 5
	}
	switch {
	case rep.ReviewCount >= 100:
		score += 25
	case rep.ReviewCount >= 50:
		score += 20
	case rep.ReviewCount >= 10:
		score += 10
	case rep.ReviewCount >= 1:
		score += 5
	}
	switch {
	case rep.SocialPlatforms >= 3:
		score += 25
	case rep.SocialPlatforms == 2:
		score += 15
	case rep.SocialPlatforms == 1:
		score += 10
	}
	return clamp(score)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
