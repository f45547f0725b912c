package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-enricher/internal/extract"
)

// TechSignature fingerprints one technology in page markup.
type TechSignature struct {
	Name    string
	Pattern *regexp.Regexp
}

// TechSignatures is ordered: site builders and CMSs first, then JS
// frameworks and libraries, CSS frameworks, and analytics/pixel tags. Order
// is preserved in the output.
var TechSignatures = []TechSignature{
	{"Wix", regexp.MustCompile(`(?i)static\.wixstatic\.com|wix-bolt|_wixCIDX|X-Wix-`)},
	{"Squarespace", regexp.MustCompile(`(?i)static1\.squarespace\.com|squarespace-cdn|Static\.SQUARESPACE_CONTEXT`)},
	{"Shopify", regexp.MustCompile(`(?i)cdn\.shopify\.com|Shopify\.theme|myshopify\.com`)},
	{"WordPress", regexp.MustCompile(`(?i)/wp-content/|/wp-includes/|wp-json`)},
	{"Webflow", regexp.MustCompile(`(?i)webflow\.(?:js|com/css)|data-wf-page|assets\.website-files\.com`)},
	{"GoDaddy Website Builder", regexp.MustCompile(`(?i)img1\.wsimg\.com|godaddy-website-builder|wsimg\.com/blobby`)},
	{"Weebly", regexp.MustCompile(`(?i)weebly\.com|editmysite\.com`)},
	{"Duda", regexp.MustCompile(`(?i)irp\.cdn-website\.com|dudamobile|d-duda`)},
	{"Joomla", regexp.MustCompile(`(?i)/media/jui/|/components/com_|joomla!`)},
	{"Drupal", regexp.MustCompile(`(?i)drupal-settings-json|/sites/default/files/|Drupal\.settings`)},
	{"Next.js", regexp.MustCompile(`(?i)__NEXT_DATA__|/_next/static/`)},
	{"React", regexp.MustCompile(`(?i)data-reactroot|react-dom(?:\.production)?(?:\.min)?\.js|__REACT_DEVTOOLS`)},
	{"Vue.js", regexp.MustCompile(`(?i)vue(?:\.runtime)?(?:\.global)?(?:\.prod)?(?:\.min)?\.js|data-v-[0-9a-f]{8}|__vue__`)},
	{"Angular", regexp.MustCompile(`(?i)ng-version=|angular(?:\.min)?\.js`)},
	{"jQuery", regexp.MustCompile(`(?i)jquery(?:[.-]\d[\w.]*)?(?:\.min)?\.js`)},
	{"Bootstrap", regexp.MustCompile(`(?i)bootstrap(?:\.bundle)?(?:\.min)?\.(?:css|js)`)},
	{"Google Tag Manager", regexp.MustCompile(`(?i)googletagmanager\.com/gtm\.js|GTM-[A-Z0-9]{4,}`)},
	{"Google Analytics", regexp.MustCompile(`(?i)google-analytics\.com/(?:analytics|ga)\.js|gtag\(|googletagmanager\.com/gtag/js|\bUA-\d{4,}-\d+`)},
	{"Meta Pixel", regexp.MustCompile(`(?i)connect\.facebook\.net/[a-z_]+/fbevents\.js|fbq\(`)},
	{"Hotjar", regexp.MustCompile(`(?i)static\.hotjar\.com|hjSiteSettings`)},
	{"HubSpot", regexp.MustCompile(`(?i)js\.hs-scripts\.com|js\.hsforms\.net|hs-analytics`)},
}

// TechStack returns the deduplicated technologies detected in html. When no
// signature matches, the meta generator tag is used as a fallback.
func TechStack(html string) []string {
	out := []string{}
	if html == "" {
		return out
	}
	seen := make(map[string]bool)
	for _, sig := range TechSignatures {
		if !seen[sig.Name] && sig.Pattern.MatchString(html) {
			seen[sig.Name] = true
			out = append(out, sig.Name)
		}
	}
	if len(out) > 0 {
		return out
	}
	if gen := generator(html); gen != "" {
		out = append(out, gen)
	}
	return out
}

// generator returns the product name of <meta name="generator">, without a
// version suffix.
func generator(html string) string {
	doc, err := extract.Parse(html)
	if err != nil {
		return ""
	}
	content := extract.MetaContent(doc, "generator")
	if content == "" {
		return ""
	}
	fields := strings.Fields(content)
	var name []string
	for _, f := range fields {
		if f != "" && (f[0] >= '0' && f[0] <= '9' || f[0] == 'v' && len(f) > 1 && f[1] >= '0' && f[1] <= '9') {
			break
		}
		name = append(name, f)
	}
	if len(name) == 0 {
		return ""
	}
	// A Caser is stateful, so one is built per call.
	return cases.Title(language.English).String(strings.Join(name, " "))
}
