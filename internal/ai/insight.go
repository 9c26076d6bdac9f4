package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

const insightSystemPrompt = "You are a business analyst that extracts structured insights from website content. Always respond with a single valid JSON object and nothing else."

var insightTemperature = float32(0.1)

type insightPayload struct {
	Industry       *string           `json:"industry"`
	CompanySize    *string           `json:"company_size"`
	Location       *string           `json:"location"`
	USP            *string           `json:"USP"`
	Products       []string          `json:"products"`
	TargetAudience *string           `json:"target_audience"`
	ContactInfo    *insightContact   `json:"contact_info"`
	CustomAnswers  map[string]string `json:"custom_answers"`
}

type insightContact struct {
	Emails      []string `json:"emails"`
	Phones      []string `json:"phones"`
	Social      []string `json:"social"`
	SocialMedia []string `json:"social_media"`
	Addresses   []string `json:"addresses"`
}

var placeholderValues = map[string]bool{
	"":              true,
	"n/a":           true,
	"na":            true,
	"null":          true,
	"none":          true,
	"unknown":       true,
	"not specified": true,
	"not available": true,
	"unclear":       true,
}

var locationKeywords = []struct {
	clue  string
	terms []string
}{
	{"Australia/New Zealand", []string{"australia", "australian", "new zealand", "& nz"}},
	{"United Kingdom", []string{"united kingdom", "british", " uk ", "uk-based", "london"}},
	{"United States", []string{"united states", "usa", "american", "u.s."}},
	{"Canada", []string{"canada", "canadian"}},
	{"Germany", []string{"germany", "german"}},
	{"India", []string{"india", "indian"}},
}

var domainLocations = []struct {
	suffix string
	clue   string
}{
	{".com.au", "Australia"},
	{".co.nz", "New Zealand"},
	{".co.uk", "United Kingdom"},
	{".ca", "Canada"},
	{".de", "Germany"},
	{".in", "India"},
}

// Synthesize asks the insight model for a structured profile of doc. A response
// that fails strict parsing gets exactly one repair round; anything else is ErrSynthesis.
func (m *Manager) Synthesize(ctx context.Context, doc *model.NormalizedDocument, questions []string) (*model.InsightRecord, error) {
	start := time.Now()
	defer metrics.ObserveStage("synthesize", start)
	logger := logutil.GetLogger(ctx).With(zap.String("url", doc.URL))

	if m.insight == nil {
		return nil, appErr.Wrap(appErr.ErrSynthesis, ErrUnavailable)
	}
	req := buildInsightRequest(doc, questions, m.cfg.MaxInputChars)
	raw, err := m.generateText(ctx, m.insight, req)
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("insight", "error").Inc()
		return nil, appErr.Wrap(appErr.ErrSynthesis, err)
	}
	rec, perr := parseInsight(raw)
	if perr != nil {
		logger.Warn("insight response rejected, retrying with repair prompt", zap.Error(perr))
		req.Messages = append(req.Messages,
			Message{Role: RoleAssistant, Content: raw},
			Message{Role: RoleUser, Content: repairPrompt(perr)},
		)
		raw, err = m.generateText(ctx, m.insight, req)
		if err != nil {
			metrics.AIRequestsTotal.WithLabelValues("insight", "error").Inc()
			return nil, appErr.Wrap(appErr.ErrSynthesis, err)
		}
		rec, perr = parseInsight(raw)
		if perr != nil {
			metrics.AIRequestsTotal.WithLabelValues("insight", "error").Inc()
			return nil, appErr.Wrap(appErr.ErrSynthesis, perr)
		}
	}
	metrics.AIRequestsTotal.WithLabelValues("insight", "success").Inc()

	rec.URL = doc.URL
	rec.ContactInfo = MergeContacts(doc.ContactInfo, rec.ContactInfo)
	if len(questions) == 0 {
		rec.CustomAnswers = nil
	}
	logger.Info("insight synthesized",
		zap.String("industry", rec.Industry),
		zap.Int("products", len(rec.Products)),
		zap.Duration("cost", time.Since(start)),
	)
	return rec, nil
}

func buildInsightRequest(doc *model.NormalizedDocument, questions []string, maxInputChars int) *Request {
	var sb strings.Builder
	sb.WriteString("Analyze the following homepage content and extract business insights.\n\n")
	fmt.Fprintf(&sb, "URL: %s\n", doc.URL)
	fmt.Fprintf(&sb, "Title: %s\n", orNA(doc.Title))
	fmt.Fprintf(&sb, "Meta Description: %s\n", orNA(doc.MetaDescription))
	fmt.Fprintf(&sb, "Headings: %s\n", orNA(strings.Join(doc.Headings, "; ")))
	if clues := LocationClues(doc); len(clues) > 0 {
		fmt.Fprintf(&sb, "Location Clues: %s\n", strings.Join(clues, "; "))
	}
	if !doc.ContactInfo.IsEmpty() {
		contact, _ := json.Marshal(doc.ContactInfo)
		fmt.Fprintf(&sb, "Detected Contact Info: %s\n", contact)
	}
	fmt.Fprintf(&sb, "Content:\n%s\n\n", truncateRunes(doc.BodyText, maxInputChars))

	sb.WriteString(`Rules:
- industry: the primary industry or sector, inferred from products, services and terminology. Required, never null.
- company_size: one of "Startup (1-10)", "Small (11-50)", "Medium (51-200)", "Large (201-1000)", "Enterprise (1000+)", or null if there is no evidence.
- location: headquarters or primary market (city, state/country), or null if not found.
- USP: a concise summary of what makes the company unique, or null.
- products: main products or services as plain strings.
- target_audience: the primary customer group, or null.
- contact_info: only values visible in the content. Never invent placeholders.
`)
	if len(questions) > 0 {
		sb.WriteString("\nAlso answer these questions from the content. Use the question text as the key in custom_answers:\n")
		for i, q := range questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
	}
	sb.WriteString(`
Return ONLY this JSON object:
{
  "industry": "string",
  "company_size": "string or null",
  "location": "string or null",
  "USP": "string or null",
  "products": ["string"],
  "target_audience": "string or null",
  "contact_info": {"emails": [], "phones": [], "social": [], "addresses": []}`)
	if len(questions) > 0 {
		sb.WriteString(`,
  "custom_answers": {"question": "answer"}`)
	}
	sb.WriteString("\n}")

	return &Request{
		System:      insightSystemPrompt,
		Messages:    []Message{{Role: RoleUser, Content: sb.String()}},
		JSON:        true,
		Temperature: &insightTemperature,
	}
}

func repairPrompt(cause error) string {
	return fmt.Sprintf(`Your previous reply could not be used: %s
Reply again with ONLY the JSON object in the requested schema. Do not add fields, comments or code fences. "industry" must be a non-empty string and "products" must be an array of strings.`, cause.Error())
}

func parseInsight(raw string) (*model.InsightRecord, error) {
	var out insightPayload
	dec := json.NewDecoder(bytes.NewBufferString(stripFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("decode insight: multiple JSON values")
		}
		return nil, fmt.Errorf("decode insight trailing data: %w", err)
	}
	industry := cleanOptional(out.Industry)
	if industry == nil {
		return nil, errors.New("insight missing industry")
	}
	rec := &model.InsightRecord{
		Industry:       *industry,
		CompanySize:    cleanOptional(out.CompanySize),
		Location:       cleanOptional(out.Location),
		USP:            cleanOptional(out.USP),
		TargetAudience: cleanOptional(out.TargetAudience),
		Products:       cleanList(out.Products),
	}
	if out.ContactInfo != nil {
		rec.ContactInfo = model.ContactInfo{
			Emails:    cleanList(out.ContactInfo.Emails),
			Phones:    cleanList(out.ContactInfo.Phones),
			Social:    cleanList(append(out.ContactInfo.Social, out.ContactInfo.SocialMedia...)),
			Addresses: cleanList(out.ContactInfo.Addresses),
		}
	}
	if len(out.CustomAnswers) > 0 {
		rec.CustomAnswers = make(map[string]string, len(out.CustomAnswers))
		for q, a := range out.CustomAnswers {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			rec.CustomAnswers[q] = strings.TrimSpace(a)
		}
	}
	return rec, nil
}

// LocationClues lists geographic hints found in the page text and domain.
func LocationClues(doc *model.NormalizedDocument) []string {
	text := " " + strings.ToLower(strings.Join([]string{doc.Title, doc.MetaDescription, doc.BodyText}, " ")) + " "
	var clues []string
	for _, kw := range locationKeywords {
		for _, term := range kw.terms {
			if strings.Contains(text, term) {
				clues = append(clues, "Geographic focus: "+kw.clue)
				break
			}
		}
	}
	host := strings.ToLower(doc.URL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	for _, d := range domainLocations {
		if strings.HasSuffix(host, d.suffix) {
			clues = append(clues, "Domain suggests: "+d.clue)
			break
		}
	}
	return clues
}

// MergeContacts unions two contact sets, keeping every list sorted and deduplicated.
func MergeContacts(a, b model.ContactInfo) model.ContactInfo {
	return model.ContactInfo{
		Emails:    unionSorted(a.Emails, b.Emails, strings.ToLower),
		Phones:    unionSorted(a.Phones, b.Phones, nil),
		Social:    unionSorted(a.Social, b.Social, nil),
		Addresses: unionSorted(a.Addresses, b.Addresses, nil),
	}
}

func unionSorted(a, b []string, norm func(string) string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if norm != nil {
				v = norm(v)
			}
			if placeholderValues[strings.ToLower(v)] {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func cleanOptional(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if placeholderValues[strings.ToLower(s)] {
		return nil
	}
	return &s
}

func cleanList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if placeholderValues[strings.ToLower(item)] {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
