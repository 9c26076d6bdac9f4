package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/xxxsen/siteinsight/internal/model"
)

var (
	emailPattern   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern   = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)|\d{2,4})[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}`)
	addressPattern = regexp.MustCompile(`\b\d{1,6}\s+[A-Za-z][A-Za-z ]{1,60}?\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Place|Pl)\b\.?`)
)

var socialDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"github.com",
}

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

func scanContacts(root *html.Node) model.ContactInfo {
	emails := map[string]struct{}{}
	phones := map[string]struct{}{}
	social := map[string]struct{}{}
	addresses := map[string]struct{}{}

	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if invisibleTags[n.Data] {
				return
			}
			if n.Data == "a" {
				scanHref(attr(n, "href"), emails, phones, social)
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	text := sb.String()
	for _, m := range emailPattern.FindAllString(text, -1) {
		addEmail(emails, m)
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		addPhone(phones, m)
	}
	for _, m := range addressPattern.FindAllString(text, -1) {
		addresses[collapseSpace(strings.TrimSuffix(m, "."))] = struct{}{}
	}

	return model.ContactInfo{
		Emails:    sortedKeys(emails),
		Phones:    sortedKeys(phones),
		Social:    sortedKeys(social),
		Addresses: sortedKeys(addresses),
	}
}

func scanHref(href string, emails, phones, social map[string]struct{}) {
	href = strings.TrimSpace(href)
	if href == "" {
		return
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		addr := href[len("mailto:"):]
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		for _, part := range strings.Split(addr, ",") {
			if emailPattern.MatchString(part) {
				addEmail(emails, emailPattern.FindString(part))
			}
		}
	case strings.HasPrefix(lower, "tel:"):
		addPhone(phones, href[len("tel:"):])
	default:
		if link, ok := socialLink(href); ok {
			social[link] = struct{}{}
		}
	}
}

func socialLink(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, domain := range socialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			u.Fragment = ""
			return u.String(), true
		}
	}
	return "", false
}

func addEmail(set map[string]struct{}, email string) {
	email = strings.ToLower(strings.Trim(strings.TrimSpace(email), "."))
	if email == "" {
		return
	}
	set[email] = struct{}{}
}

// addPhone stores the number as digits with an optional leading '+'.
func addPhone(set map[string]struct{}, raw string) {
	raw = strings.TrimSpace(raw)
	var sb strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			sb.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	normalized := sb.String()
	digits := len(strings.TrimPrefix(normalized, "+"))
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return
	}
	set[normalized] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
