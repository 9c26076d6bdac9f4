package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

const acmeHTML = `<!doctype html>
<html>
<head>
	<title>Acme Rockets</title>
	<meta name="description" content="Rockets for startups">
	<script>var tracking = "ignore@tracker.io";</script>
</head>
<body>
	<nav class="navbar"><a href="/">Home</a><a href="/pricing">Pricing for every launch</a></nav>
	<div id="cookie-banner">We use cookies to improve your experience on this site.</div>
	<main>
		<h1>Acme</h1>
		<p>Acme sells rockets to startups. Contact: a@acme.com.</p>
		<p>Acme sells rockets to startups. Contact: a@acme.com.</p>
		<h2>Why Acme</h2>
		<p>Hi</p>
		<ul><li>Reusable boosters for small satellite operators</li></ul>
	</main>
	<footer>
		<p>Visit us at 100 Launch Pad Road, call +1 (555) 123-4567.</p>
		<p>© 2024 Acme. All rights reserved.</p>
		<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
		<a href="mailto:Sales@Acme.com?subject=hi">Sales</a>
	</footer>
</body>
</html>`

func TestExtractAcme(t *testing.T) {
	doc, err := New(Config{}).Extract("https://acme.example", acmeHTML)
	require.NoError(t, err)
	require.Equal(t, "https://acme.example", doc.URL)
	require.Equal(t, "Acme Rockets", doc.Title)
	require.Equal(t, "Rockets for startups", doc.MetaDescription)
	require.Equal(t, []string{"Acme", "Why Acme"}, doc.Headings)

	require.Contains(t, doc.BodyText, "Acme sells rockets to startups.")
	require.Equal(t, 1, strings.Count(doc.BodyText, "Acme sells rockets"))
	require.Contains(t, doc.BodyText, "Reusable boosters")
	require.NotContains(t, doc.BodyText, "Pricing")
	require.NotContains(t, doc.BodyText, "cookies")
	require.NotContains(t, doc.BodyText, "All rights reserved")
	require.NotContains(t, doc.BodyText, "tracking")
	lines := strings.Split(doc.BodyText, "\n")
	require.NotContains(t, lines, "Hi")
	require.Contains(t, lines, "Why Acme")

	require.Equal(t, []string{"a@acme.com", "sales@acme.com"}, doc.ContactInfo.Emails)
	require.Equal(t, []string{"+15551234567"}, doc.ContactInfo.Phones)
	require.Equal(t, []string{"https://www.linkedin.com/company/acme"}, doc.ContactInfo.Social)
	require.Equal(t, []string{"100 Launch Pad Road"}, doc.ContactInfo.Addresses)
}

func TestExtractMinimalBody(t *testing.T) {
	doc, err := New(Config{}).Extract("https://acme.example",
		"<html><body>Acme sells rockets to startups. Contact: a@acme.com.</body></html>")
	require.NoError(t, err)
	require.Equal(t, "Acme sells rockets to startups. Contact: a@acme.com.", doc.BodyText)
	require.Contains(t, doc.ContactInfo.Emails, "a@acme.com")
}

func TestExtractTitleFallbacks(t *testing.T) {
	body := "<p>Enough descriptive text to survive de-noising.</p>"
	doc, err := New(Config{}).Extract("u", `<html><head><meta property="og:title" content="OG Name"></head><body>`+body+`</body></html>`)
	require.NoError(t, err)
	require.Equal(t, "OG Name", doc.Title)

	doc, err = New(Config{}).Extract("u", `<html><body><h1>Heading Name</h1>`+body+`</body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Heading Name", doc.Title)
}

func TestExtractCustomBoilerplate(t *testing.T) {
	page := `<html><body><p>Acme sells rockets to startups everywhere.</p><p>Book a demo with our friendly team.</p></body></html>`
	doc, err := New(Config{BoilerplateKeywords: []string{"Book a demo"}}).Extract("u", page)
	require.NoError(t, err)
	require.Equal(t, "Acme sells rockets to startups everywhere.", doc.BodyText)
}

func TestExtractNoUsableContent(t *testing.T) {
	ex := New(Config{})
	_, err := ex.Extract("u", "")
	require.True(t, errors.Is(err, appErr.ErrParse))

	_, err = ex.Extract("u", "<html><body><nav>Only navigation links here</nav><script>x()</script></body></html>")
	require.True(t, errors.Is(err, appErr.ErrParse))
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := New(Config{})
	first, err := ex.Extract("u", acmeHTML)
	require.NoError(t, err)
	second, err := ex.Extract("u", acmeHTML)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
