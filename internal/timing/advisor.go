// Package timing recommends when to call a lead, from a fixed lookup table.
package timing

import (
	_ "embed"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enricher/internal/model"
)

//go:embed windows.yaml
var defaultTable []byte

// Table is the call-window lookup table.
type Table struct {
	Default    string            `yaml:"default"`
	LeadTypes  map[string]string `yaml:"lead_types"`
	Categories []CategoryWindow  `yaml:"categories"`
}

// CategoryWindow maps category keywords to a call window. A keyword matches
// whole words of the category, plurals included; a trailing "*" makes it a
// word stem ("plumb*" matches "plumbing" and "plumber").
type CategoryWindow struct {
	Keywords []string `yaml:"keywords"`
	Window   string   `yaml:"window"`
}

type categoryMatcher struct {
	patterns []*regexp.Regexp
	window   string
}

// Advisor answers call-window lookups. It is safe for concurrent use.
type Advisor struct {
	table    Table
	matchers []categoryMatcher
}

// NewAdvisor loads the embedded table.
func NewAdvisor() (*Advisor, error) {
	return ParseAdvisor(defaultTable)
}

// ParseAdvisor builds an Advisor from YAML.
func ParseAdvisor(data []byte) (*Advisor, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "timing: parse table")
	}
	a := &Advisor{table: t}
	for _, cw := range t.Categories {
		m := categoryMatcher{window: cw.Window}
		for _, k := range cw.Keywords {
			re, err := keywordPattern(k)
			if err != nil {
				return nil, eris.Wrapf(err, "timing: keyword %q", k)
			}
			if re != nil {
				m.patterns = append(m.patterns, re)
			}
		}
		a.matchers = append(a.matchers, m)
	}
	return a, nil
}

// Window returns the recommended call window for a lead. ok is false when
// there is nothing to base a recommendation on: a business lead with no
// category.
func (a *Advisor) Window(leadType model.LeadType, category string) (string, bool) {
	if w, ok := a.table.LeadTypes[string(leadType)]; ok && w != "" {
		return w, true
	}
	cat := strings.ToLower(strings.TrimSpace(category))
	if cat == "" {
		return "", false
	}
	for _, m := range a.matchers {
		for _, re := range m.patterns {
			if re.MatchString(cat) {
				return m.window, true
			}
		}
	}
	if a.table.Default == "" {
		return "", false
	}
	return a.table.Default, true
}

// keywordPattern compiles one table keyword. Word edges are Unicode letters
// and digits so "café" matches like "cafe". Multi-word keywords tolerate any
// run of whitespace between words. Blank keywords yield nil.
func keywordPattern(keyword string) (*regexp.Regexp, error) {
	k := strings.ToLower(strings.TrimSpace(keyword))
	stem := strings.HasSuffix(k, "*")
	k = strings.TrimSpace(strings.TrimSuffix(k, "*"))
	if k == "" {
		return nil, nil
	}

	words := strings.Fields(k)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	tail := `(?:s|es)?(?:$|[^\pL\pN])`
	if stem {
		tail = `[\pL\pN]*`
	}
	return regexp.Compile(`(?:^|[^\pL\pN])` + strings.Join(words, `\s+`) + tail)
}
