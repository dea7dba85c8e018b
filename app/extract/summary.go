package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	summaryMaxRunes = 300
	summaryMinRunes = 80
)

// summarySkipRe matches paragraph openings that are navigation or contact
// noise rather than report text.
var summarySkipRe = regexp.MustCompile(`(?i)^(mehr themen|\d{2}\.\d{2}\.\d{4}|rückfragen bitte an|kreispolizeibehörde|original-content|pdf-version|druckversion)`)

var stripPolicy = bluemonday.StrictPolicy()

// Summary picks the first substantial paragraph (longer than 80 runes, not
// matching the skip patterns) and truncates it to 300 runes. When no
// paragraph qualifies it falls back to the page's meta description, if any.
func Summary(paragraphs []string, metaDescription string) string {
	for _, p := range paragraphs {
		if summarySkipRe.MatchString(p) {
			continue
		}
		if len([]rune(p)) > summaryMinRunes {
			return truncateRunes(p, summaryMaxRunes)
		}
	}
	if metaDescription != "" {
		return truncateRunes(metaDescription, summaryMaxRunes)
	}
	return ""
}

// MetaDescription returns the sanitized content of the page's description
// meta tag, preferring name=description over og:description.
func MetaDescription(doc *goquery.Document) string {
	content, ok := doc.Find(`meta[name="description"]`).First().Attr("content")
	if !ok || strings.TrimSpace(content) == "" {
		content, _ = doc.Find(`meta[property="og:description"]`).First().Attr("content")
	}
	return StripHTML(content)
}

// StripHTML removes all markup from s and unescapes HTML entities. Used on
// text that arrives from HTML-bearing fields (meta descriptions, RSS
// titles).
func StripHTML(s string) string {
	return normalizeSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
