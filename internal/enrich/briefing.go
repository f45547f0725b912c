package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/anthropic"
)

const (
	briefingTalkingPoints = 3
	maxObjections         = 2
)

const briefingSystem = `You write short pre-call sales briefings for a web design and marketing agency.
Use only the facts provided about the lead. Never invent numbers, names or history.

Respond with a single JSON object and nothing else:
{
  "summary": "2-3 sentences on who the lead is and where they stand online",
  "talking_points": ["exactly three specific points to raise"],
  "recommended_channel": "one of: phone, email, in_person, instagram_dm, linkedin, facebook_message",
  "channel_reason": "one sentence explaining the channel choice",
  "objections": ["one or two likely objections"],
  "best_time_to_call": "when to reach out"
}`

// BriefingInput is the merged view the briefing is written from.
type BriefingInput struct {
	Lead          model.LeadRecord
	Scores        *model.WebsiteScores
	SiteStatus    model.SiteStatus
	TechStack     []string
	ReviewSummary *model.ReviewSummary
	Competitors   []model.CompetitorSnapshot
	TimingWindow  string
}

// Briefer synthesizes the sales brief.
type Briefer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewBriefer creates a Briefer.
func NewBriefer(ai anthropic.Client, model string, maxTokens int64) *Briefer {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Briefer{ai: ai, model: model, maxTokens: maxTokens}
}

// Synthesize makes the briefing call and normalizes its answer. When a
// timing window is supplied it replaces whatever the model said.
func (b *Briefer) Synthesize(ctx context.Context, s Strategy, in BriefingInput) (*model.Briefing, error) {
	resp, err := b.ai.CreateMessage(ctx, anthropic.Prompt(b.model, b.maxTokens, briefingSystem, briefingPrompt(s, in)))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: briefing call")
	}
	resp.Usage.LogUsage(b.model, "briefing")

	var out model.Briefing
	if err := anthropic.DecodeJSON(resp, &out); err != nil {
		return nil, eris.Wrap(ErrParse, err.Error())
	}
	return normalizeBriefing(out, in)
}

func normalizeBriefing(br model.Briefing, in BriefingInput) (*model.Briefing, error) {
	br.Summary = strings.TrimSpace(br.Summary)
	if br.Summary == "" {
		return nil, eris.Wrap(ErrParse, "briefing has no summary")
	}

	br.TalkingPoints = trimList(br.TalkingPoints, briefingTalkingPoints)
	if len(br.TalkingPoints) < briefingTalkingPoints {
		return nil, eris.Wrapf(ErrParse, "briefing has %d talking points, want %d", len(br.TalkingPoints), briefingTalkingPoints)
	}

	br.Objections = trimList(br.Objections, maxObjections)
	if len(br.Objections) == 0 {
		return nil, eris.Wrap(ErrParse, "briefing has no objections")
	}

	br.RecommendedChannel = model.Channel(strings.ToLower(strings.TrimSpace(string(br.RecommendedChannel))))
	if !br.RecommendedChannel.Valid() {
		br.RecommendedChannel = FallbackChannel(in.Lead)
		br.ChannelReason = fmt.Sprintf("Defaulted to %s, the most direct channel on file.", br.RecommendedChannel)
	}
	br.ChannelReason = strings.TrimSpace(br.ChannelReason)

	if in.TimingWindow != "" {
		br.BestTimeToCall = in.TimingWindow
	}
	br.BestTimeToCall = strings.TrimSpace(br.BestTimeToCall)
	return &br, nil
}

// FallbackChannel picks the first available of phone, email and in-person.
func FallbackChannel(l model.LeadRecord) model.Channel {
	switch {
	case strings.TrimSpace(l.Phone) != "":
		return model.ChannelPhone
	case strings.TrimSpace(l.Email) != "":
		return model.ChannelEmail
	}
	return model.ChannelInPerson
}

func trimList(in []string, limit int) []string {
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

func briefingPrompt(s Strategy, in BriefingInput) string {
	l := in.Lead
	var b strings.Builder
	fmt.Fprintf(&b, "Write a briefing for a call with %s.\n%s\n\n", s.BriefingRole, s.BriefingFocus)

	b.WriteString("Lead:\n")
	writeLine(&b, "Name", l.Name)
	writeLine(&b, "Type", string(l.Type))
	writeLine(&b, "Category", l.Category)
	writeLine(&b, "Location", joinQuery(l.City, l.State))
	writeLine(&b, "Owner", l.OwnerName)
	writeLine(&b, "Phone", l.Phone)
	writeLine(&b, "Email", l.Email)
	writeLine(&b, "Website", l.Website)
	writeLine(&b, "Hours", l.Hours)
	writeLine(&b, "Business status", l.BusinessStatus)
	fields := l.Fields()
	for _, f := range profileFields {
		if v, ok := fields[f].(string); ok {
			writeLine(&b, f, v)
		}
	}
	writeCount(&b, "Instagram followers", l.InstagramFollowers)
	writeCount(&b, "TikTok followers", l.TikTokFollowers)
	writeCount(&b, "YouTube subscribers", l.YouTubeSubscribers)
	if l.Rating != nil {
		reviews := 0
		if l.ReviewCount != nil {
			reviews = *l.ReviewCount
		}
		fmt.Fprintf(&b, "Rating: %.1f from %d reviews\n", *l.Rating, reviews)
	}

	b.WriteString("\nWebsite:\n")
	writeLine(&b, "Status", string(in.SiteStatus))
	if sc := in.Scores; sc != nil {
		fmt.Fprintf(&b, "Quality score: %d/100 (technical %d, content %d, mobile %d, presence %d, design %d)\n",
			sc.Composite, sc.Technical, sc.Content, sc.Mobile, sc.Presence, sc.Design)
	}
	if len(in.TechStack) > 0 {
		writeLine(&b, "Built with", strings.Join(in.TechStack, ", "))
	}

	if rs := in.ReviewSummary; rs != nil {
		b.WriteString("\nReviews:\n")
		writeLine(&b, "Praised for", strings.Join(rs.PositiveThemes, "; "))
		writeLine(&b, "Criticized for", strings.Join(rs.NegativeThemes, "; "))
		for _, p := range rs.TalkingPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if len(in.Competitors) > 0 {
		b.WriteString("\nNearby competitors:\n")
		for _, c := range in.Competitors {
			site := "no website"
			if c.HasWebsite {
				site = "has website"
			}
			fmt.Fprintf(&b, "- %s: %.1f stars, %d reviews, %s\n", c.Name, c.Rating, c.ReviewCount, site)
		}
	}

	if in.TimingWindow != "" {
		fmt.Fprintf(&b, "\nBest time to call (use verbatim): %s\n", in.TimingWindow)
	}
	return b.String()
}

func writeCount(b *strings.Builder, label string, n *int) {
	if n != nil {
		fmt.Fprintf(b, "%s: %d\n", label, *n)
	}
}
