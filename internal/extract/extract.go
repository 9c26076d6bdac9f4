package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

const (
	defaultMinBlockChars = 20
	boilerplateMaxChars  = 160
)

var defaultBoilerplate = []string{
	"cookie",
	"subscribe",
	"newsletter",
	"all rights reserved",
	"privacy policy",
	"terms of service",
	"terms and conditions",
	"sign up",
	"log in",
	"accept all",
}

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"iframe":   true,
	"canvas":   true,
	"nav":      true,
	"aside":    true,
	"form":     true,
	"button":   true,
	"select":   true,
	"head":     true,
}

// invisible tags never contribute to the contact scan either.
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

var blockTags = map[string]bool{
	"p": true, "li": true, "td": true, "th": true, "dd": true, "dt": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"div": true, "section": true, "article": true, "main": true, "header": true,
	"footer": true, "blockquote": true, "pre": true, "figcaption": true,
	"address": true, "caption": true, "tr": true, "ul": true, "ol": true,
	"table": true, "body": true, "br": true, "hr": true,
}

var chromeMarkers = []string{
	"navbar",
	"navigation",
	"nav-",
	"menu",
	"breadcrumb",
	"cookie",
	"consent",
	"gdpr",
	"popup",
	"modal",
	"advert",
	"sponsor",
	"skip-link",
}

var chromeRoles = map[string]bool{
	"navigation":    true,
	"dialog":        true,
	"alertdialog":   true,
	"menu":          true,
	"menubar":       true,
	"complementary": true,
	"search":        true,
}

type Config struct {
	MinBlockChars       int
	BoilerplateKeywords []string
}

// Extractor turns raw homepage markup into a NormalizedDocument. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	minBlockChars int
	boilerplate   []string
}

func New(cfg Config) *Extractor {
	e := &Extractor{
		minBlockChars: cfg.MinBlockChars,
		boilerplate:   defaultBoilerplate,
	}
	if e.minBlockChars <= 0 {
		e.minBlockChars = defaultMinBlockChars
	}
	if len(cfg.BoilerplateKeywords) > 0 {
		e.boilerplate = make([]string, 0, len(cfg.BoilerplateKeywords))
		for _, kw := range cfg.BoilerplateKeywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				e.boilerplate = append(e.boilerplate, kw)
			}
		}
	}
	return e
}

type block struct {
	text    string
	heading bool
}

func (e *Extractor) Extract(url string, rawHTML string) (*model.NormalizedDocument, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("%w: empty document", appErr.ErrParse)
	}
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrParse, err)
	}

	doc := &model.NormalizedDocument{
		URL:             url,
		Title:           extractTitle(root),
		MetaDescription: extractMetaDescription(root),
	}

	w := &walker{}
	w.walk(root)
	w.flush()

	doc.Headings = dedupe(w.headings)
	doc.BodyText = strings.Join(e.denoise(w.blocks), "\n")
	if strings.TrimSpace(doc.BodyText) == "" {
		return nil, fmt.Errorf("%w: no body text", appErr.ErrParse)
	}
	doc.ContactInfo = scanContacts(root)
	return doc, nil
}

func (e *Extractor) denoise(blocks []block) []string {
	seen := make(map[string]struct{}, len(blocks))
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b.text]; ok {
			continue
		}
		n := utf8.RuneCountInString(b.text)
		if !b.heading && n < e.minBlockChars {
			continue
		}
		if n <= boilerplateMaxChars && e.isBoilerplate(b.text) {
			continue
		}
		seen[b.text] = struct{}{}
		out = append(out, b.text)
	}
	return out
}

func (e *Extractor) isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range e.boilerplate {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type walker struct {
	buf          strings.Builder
	bufHeading   bool
	headingDepth int
	headingBuf   strings.Builder
	blocks       []block
	headings     []string
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] || isChrome(n) {
			return
		}
		if blockTags[n.Data] {
			w.flush()
		}
		heading := isHeading(n.Data)
		if heading {
			w.headingDepth++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		if heading {
			w.headingDepth--
			if w.headingDepth == 0 {
				if h := collapseSpace(w.headingBuf.String()); h != "" {
					w.headings = append(w.headings, h)
				}
				w.headingBuf.Reset()
			}
		}
		if blockTags[n.Data] {
			w.flush()
		}
		return
	}
	if n.Type == html.TextNode {
		w.buf.WriteString(n.Data)
		w.buf.WriteByte(' ')
		if w.headingDepth > 0 {
			w.bufHeading = true
			w.headingBuf.WriteString(n.Data)
			w.headingBuf.WriteByte(' ')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) flush() {
	text := collapseSpace(w.buf.String())
	if text != "" {
		w.blocks = append(w.blocks, block{text: text, heading: w.bufHeading})
	}
	w.buf.Reset()
	w.bufHeading = false
}

func isHeading(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func isChrome(n *html.Node) bool {
	if role := strings.ToLower(attr(n, "role")); role != "" && chromeRoles[role] {
		return true
	}
	if strings.EqualFold(attr(n, "aria-hidden"), "true") {
		return true
	}
	marks := strings.ToLower(attr(n, "id") + " " + attr(n, "class"))
	if strings.TrimSpace(marks) == "" {
		return false
	}
	for _, token := range strings.Fields(marks) {
		if token == "nav" || token == "ad" || token == "ads" {
			return true
		}
		for _, m := range chromeMarkers {
			if strings.Contains(token, m) {
				return true
			}
		}
	}
	return false
}

func extractTitle(root *html.Node) string {
	if n := findFirst(root, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
		if t := collapseSpace(textOf(n)); t != "" {
			return t
		}
	}
	if v := metaContent(root, "property", "og:title"); v != "" {
		return v
	}
	if n := findFirst(root, func(n *html.Node) bool { return n.Data == "h1" }); n != nil {
		return collapseSpace(textOf(n))
	}
	return ""
}

func extractMetaDescription(root *html.Node) string {
	if v := metaContent(root, "name", "description"); v != "" {
		return v
	}
	return metaContent(root, "property", "og:description")
}

func metaContent(root *html.Node, key, value string) string {
	n := findFirst(root, func(n *html.Node) bool {
		return n.Data == "meta" && strings.EqualFold(attr(n, key), value)
	})
	if n == nil {
		return ""
	}
	return collapseSpace(attr(n, "content"))
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
