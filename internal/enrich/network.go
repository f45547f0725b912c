package enrich

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/serper"
)

// NetworkCategories are category keywords whose leads are worth a
// professional-network search.
var NetworkCategories = []string{
	"legal", "law firm", "attorney", "lawyer",
	"financial", "finance", "accounting", "accountant", "cpa", "insurance",
	"medical", "dental", "dentist", "clinic", "health", "chiropract",
	"consulting", "consultant", "agency",
	"software", "technology", "it services",
	"marketing", "real estate", "realtor", "architect", "engineering",
}

var (
	personPath  = regexp.MustCompile(`^/in/[A-Za-z0-9_%-]+/?$`)
	companyPath = regexp.MustCompile(`^/company/[A-Za-z0-9_%-]+/?$`)
)

// NetworkEligible reports whether a lead gets a professional-network search.
func NetworkEligible(s Strategy, category string) bool {
	if s.AlwaysNetwork {
		return true
	}
	c := strings.ToLower(category)
	if c == "" {
		return false
	}
	for _, k := range NetworkCategories {
		if strings.Contains(c, k) {
			return true
		}
	}
	return false
}

// networkQuery is one profile search and the field its hits may populate.
type networkQuery struct {
	Field string
	Query string
}

func networkQueries(lead model.LeadRecord) []networkQuery {
	var qs []networkQuery
	if owner := strings.TrimSpace(lead.OwnerName); owner != "" {
		qs = append(qs, networkQuery{
			Field: "owner_linkedin",
			Query: joinQuery(quote(owner), quote(lead.City), "site:linkedin.com/in"),
		})
	}
	if name := strings.TrimSpace(lead.Name); name != "" {
		qs = append(qs, networkQuery{
			Field: "company_linkedin",
			Query: joinQuery(quote(name), "site:linkedin.com/company"),
		})
	}
	return qs
}

// profileField classifies a URL as a personal or company profile. Anything
// else returns "".
func profileField(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ""
	}
	switch {
	case personPath.MatchString(u.Path):
		return "owner_linkedin"
	case companyPath.MatchString(u.Path):
		return "company_linkedin"
	}
	return ""
}

// readNetwork keeps only results whose URL has the profile shape the query
// asked for and renders them as a raw source.
func readNetwork(field string, resp *serper.Response) []string {
	if resp == nil {
		return nil
	}
	var lines []string
	for _, o := range resp.Organic {
		if profileField(o.Link) != field {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s candidate: %s | %s | %s", field, o.Link, o.Title, o.Snippet))
	}
	return lines
}
