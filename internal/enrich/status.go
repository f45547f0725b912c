package enrich

import (
	"strings"

	"github.com/sells-group/lead-enricher/internal/model"
)

// ResolveClosure turns the signals gathered so far into a verdict. Priority
// is explicit:
//
//  1. places status: CLOSED_PERMANENTLY is final; OPERATIONAL vetoes every
//     weaker signal.
//  2. knowledge panel phrase: final unless vetoed.
//  3. extraction business_closed: final only when a search snippet agrees
//     and nothing vetoes it.
//  4. search snippet phrase: never final on its own.
//
// suspected is true when closure evidence exists but did not carry.
func ResolveClosure(signals []model.ClosureSignal) (decision model.BusinessStatusDecision, suspected bool) {
	var (
		veto      *model.ClosureSignal
		panel     *model.ClosureSignal
		extracted *model.ClosureSignal
		snippets  []model.ClosureSignal
	)
	for i := range signals {
		s := &signals[i]
		switch s.Source {
		case model.ClosurePlacesStatus:
			if s.Closed {
				return closed(*s, s.Evidence), false
			}
			veto = s
		case model.ClosureKnowledgePanel:
			if s.Closed && panel == nil {
				panel = s
			}
		case model.ClosureExtraction:
			if s.Closed && extracted == nil {
				extracted = s
			}
		case model.ClosureSearchSnippet:
			if s.Closed {
				snippets = append(snippets, *s)
			}
		}
	}

	evidence := panel != nil || extracted != nil || len(snippets) > 0
	if veto != nil {
		open := model.BusinessStatusDecision{Status: model.StatusOpen, Source: model.ClosurePlacesStatus, Reasoning: veto.Evidence}
		if evidence {
			open.Reasoning += "; overrides weaker closure evidence"
		}
		return open, evidence
	}
	if panel != nil {
		return closed(*panel, panel.Evidence), false
	}
	if extracted != nil && len(snippets) > 0 {
		return closed(*extracted, extracted.Evidence+"; corroborated by "+snippets[0].Evidence), false
	}
	if evidence {
		var parts []string
		if extracted != nil {
			parts = append(parts, extracted.Evidence)
		}
		for _, s := range snippets {
			parts = append(parts, s.Evidence)
		}
		return model.BusinessStatusDecision{
			Status:    model.StatusOpen,
			Reasoning: "uncorroborated closure evidence: " + strings.Join(parts, "; "),
		}, true
	}
	return model.BusinessStatusDecision{Status: model.StatusOpen, Reasoning: "no closure evidence"}, false
}

func closed(s model.ClosureSignal, reasoning string) model.BusinessStatusDecision {
	return model.BusinessStatusDecision{
		Status:    model.StatusPermanentlyClosed,
		Source:    s.Source,
		Reasoning: reasoning,
	}
}
