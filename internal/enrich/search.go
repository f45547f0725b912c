package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/scrape"
	"github.com/sells-group/lead-enricher/pkg/serper"
)

// ClosurePhrases mark a business as permanently closed when they appear in
// a knowledge panel or result snippet.
var ClosurePhrases = []string{
	"permanently closed",
	"closed permanently",
	"out of business",
	"no longer in business",
	"has closed its doors",
	"closed for good",
}

// closurePhrase returns the first closure phrase found in text.
func closurePhrase(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range ClosurePhrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// searchFindings is what the web search layer hands to later layers.
type searchFindings struct {
	Source     model.RawDataSource
	Candidates []scrape.Candidate
	Signals    []model.ClosureSignal
	Website    string
}

// readSearch turns a search response into a raw source, directory
// candidates and closure signals.
func readSearch(resp *serper.Response) searchFindings {
	var f searchFindings
	if resp == nil {
		return f
	}

	var b strings.Builder
	if kg := resp.KnowledgeGraph; kg != nil {
		b.WriteString("Knowledge panel:\n")
		writeLine(&b, "Name", kg.Title)
		writeLine(&b, "Type", kg.Type)
		writeLine(&b, "Website", kg.Website)
		writeLine(&b, "Phone", kg.PhoneNumber)
		writeLine(&b, "Address", kg.Address)
		writeLine(&b, "Description", kg.Description)
		if kg.Rating > 0 {
			fmt.Fprintf(&b, "Rating: %.1f (%d reviews)\n", kg.Rating, kg.RatingCount)
		}
		for _, k := range sortedKeys(kg.Attributes) {
			writeLine(&b, k, kg.Attributes[k])
		}
		f.Website = kg.Website

		panel := strings.Join([]string{kg.Title, kg.Type, kg.Description, attributeText(kg.Attributes)}, " ")
		if p, ok := closurePhrase(panel); ok {
			f.Signals = append(f.Signals, model.ClosureSignal{
				Source:   model.ClosureKnowledgePanel,
				Closed:   true,
				Evidence: fmt.Sprintf("knowledge panel says %q", p),
			})
		}
		b.WriteString("\n")
	}

	if len(resp.Organic) > 0 {
		b.WriteString("Search results:\n")
	}
	for _, o := range resp.Organic {
		fmt.Fprintf(&b, "- %s | %s | %s\n", o.Title, o.Link, o.Snippet)
		f.Candidates = append(f.Candidates, scrape.Candidate{Title: o.Title, URL: o.Link})
		if p, ok := closurePhrase(o.Title + " " + o.Snippet); ok {
			f.Signals = append(f.Signals, model.ClosureSignal{
				Source:   model.ClosureSearchSnippet,
				Closed:   true,
				Evidence: fmt.Sprintf("result %s mentions %q", o.Link, p),
			})
		}
	}

	if b.Len() > 0 {
		f.Source = model.RawDataSource{Origin: "search", Text: strings.TrimSpace(b.String())}
	}
	return f
}

func attributeText(attrs map[string]string) string {
	var parts []string
	for _, k := range sortedKeys(attrs) {
		parts = append(parts, k+" "+attrs[k])
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeLine(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
