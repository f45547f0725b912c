package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Contacts are the contact channels found on one page.
type Contacts struct {
	Emails  []string          `json:"emails,omitempty"`
	Phones  []string          `json:"phones,omitempty"`
	Socials map[string]string `json:"socials,omitempty"`
}

// Merge appends o's values that c does not already have.
func (c *Contacts) Merge(o Contacts) {
	c.Emails = appendUnique(c.Emails, o.Emails...)
	for _, p := range o.Phones {
		if !containsDigits(c.Phones, Digits(p)) {
			c.Phones = append(c.Phones, p)
		}
	}
	for k, v := range o.Socials {
		if c.Socials == nil {
			c.Socials = make(map[string]string)
		}
		if _, ok := c.Socials[k]; !ok {
			c.Socials[k] = v
		}
	}
}

// Summary renders the contacts as labeled lines for a raw source payload.
func (c Contacts) Summary() string {
	var b strings.Builder
	if len(c.Emails) > 0 {
		fmt.Fprintf(&b, "Emails: %s\n", strings.Join(c.Emails, ", "))
	}
	if len(c.Phones) > 0 {
		fmt.Fprintf(&b, "Phones: %s\n", strings.Join(c.Phones, ", "))
	}
	fields := make([]string, 0, len(c.Socials))
	for k := range c.Socials {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		fmt.Fprintf(&b, "%s: %s\n", k, c.Socials[k])
	}
	return b.String()
}

// FindContacts runs every pattern table over html. Emails and social links are
// read from the raw markup so href values count; phones are read from the
// stripped text plus tel: links.
func FindContacts(html string) Contacts {
	c := Contacts{
		Emails:  FindEmails(html),
		Socials: FindSocials(html),
	}
	c.Phones = FindPhones(StripHTML(html) + "\n" + strings.Join(TelLinks(html), "\n"))
	return c
}

// FindEmails returns lowercased, deduplicated addresses that pass the
// false-positive filters.
func FindEmails(text string) []string {
	var out []string
	for _, re := range EmailPatterns {
		for _, m := range re.FindAllString(text, -1) {
			email := strings.ToLower(strings.Trim(m, ".-"))
			if acceptEmail(email) {
				out = appendUnique(out, email)
			}
		}
	}
	return out
}

func acceptEmail(email string) bool {
	for _, suf := range emailBadSuffixes {
		if strings.HasSuffix(email, suf) {
			return false
		}
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return false
	}
	domain := email[at+1:]
	if emailBadDomains[domain] {
		return false
	}
	for bad := range emailBadDomains {
		if strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return true
}

// FindPhones returns numbers with 10 to 15 significant digits, deduplicated by
// their digit string. The first spelling seen is kept.
func FindPhones(text string) []string {
	var out []string
	for _, re := range PhonePatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			d := Digits(m)
			if len(d) < minPhoneDigits || len(d) > maxPhoneDigits {
				continue
			}
			if containsDigits(out, d) {
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

// FindSocials maps lead field to canonical profile URL for every platform
// with a profile link in html.
func FindSocials(html string) map[string]string {
	out := make(map[string]string)
	for _, sp := range SocialPatterns {
		if _, ok := out[sp.Field]; ok {
			continue
		}
		for _, m := range sp.Pattern.FindAllStringSubmatch(html, -1) {
			handle := strings.TrimSuffix(m[1], ".")
			first := strings.ToLower(strings.SplitN(handle, "/", 2)[0])
			if handle == "" || sp.Exclude[first] {
				continue
			}
			out[sp.Field] = fmt.Sprintf(sp.Canonical, handle)
			break
		}
	}
	return out
}

// Digits strips everything but ASCII digits, dropping a leading North
// American country code so "+1 555..." and "555..." compare equal.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		return d[1:]
	}
	return d
}

func containsDigits(phones []string, d string) bool {
	for _, p := range phones {
		if Digits(p) == d {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
