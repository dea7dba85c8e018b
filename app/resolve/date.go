package resolve

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/PuerkitoBio/goquery"
)

// Retention limits how far back a source is scraped. Exactly one of Days or
// Cutoff is set; Days counts backwards from the current day, Cutoff is a
// fixed ISO date before which articles are skipped.
type Retention struct {
	Days   int
	Cutoff string
}

// TooOld reports whether date falls outside the retention window. A zero
// retention keeps everything.
func (r Retention) TooOld(date, now time.Time) bool {
	if r.Cutoff != "" {
		cutoff, err := time.Parse("2006-01-02", r.Cutoff)
		if err == nil && date.Before(cutoff) {
			return true
		}
		return false
	}
	if r.Days > 0 {
		floor := now.AddDate(0, 0, -r.Days)
		return date.Before(floor)
	}
	return false
}

// DateResolver extracts a publication date from an article page using an
// ordered list of selector specs of the form "css" or "css@attr". When no
// selector yields a parseable date it falls back to the listing date, then
// to a raw dd.mm.yyyy scan over the page text, and finally to today.
type DateResolver struct {
	selectors []selectorSpec
}

type selectorSpec struct {
	css  string
	attr string
}

func NewDateResolver(selectors []string) *DateResolver {
	specs := make([]selectorSpec, 0, len(selectors))
	for _, s := range selectors {
		css, attr, _ := strings.Cut(s, "@")
		specs = append(specs, selectorSpec{css: css, attr: attr})
	}
	return &DateResolver{selectors: specs}
}

var (
	isoPrefixRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	dmyRe       = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
)

var germanMonths = map[string]string{
	"januar": "01", "februar": "02", "märz": "03", "april": "04",
	"mai": "05", "juni": "06", "juli": "07", "august": "08",
	"september": "09", "oktober": "10", "november": "11", "dezember": "12",
}

var germanMonthRe = regexp.MustCompile(`(?i)(\d{1,2})\.?\s+(januar|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember)\s+(\d{4})`)

// Resolve returns the article date in YYYY-MM-DD, clamped so it never lies
// in the future.
func (r *DateResolver) Resolve(doc *goquery.Document, listDate string, now time.Time) string {
	today := now.UTC().Truncate(24 * time.Hour)

	for _, spec := range r.selectors {
		sel := doc.Find(spec.css).First()
		if sel.Length() == 0 {
			continue
		}
		raw := sel.Text()
		if spec.attr != "" {
			raw, _ = sel.Attr(spec.attr)
		}
		if date, ok := normalizeDate(raw); ok {
			return clamp(date, today)
		}
	}

	if date, ok := normalizeDate(listDate); ok {
		return clamp(date, today)
	}

	if m := dmyRe.FindStringSubmatch(doc.Text()); m != nil {
		if date, ok := parseDMY(m); ok {
			return clamp(date, today)
		}
	}

	return today.Format("2006-01-02")
}

// normalizeDate turns the many date shapes the sources produce into a
// time.Time: ISO prefixes (also datetime attributes), dd.mm.yyyy, German
// month names, and as a last resort whatever dateparse recognizes.
func normalizeDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	raw = strings.TrimSuffix(raw, " Uhr")

	if m := isoPrefixRe.FindStringSubmatch(raw); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return t, true
		}
	}
	if m := dmyRe.FindStringSubmatch(raw); m != nil {
		if t, ok := parseDMY(m); ok {
			return t, ok
		}
	}
	if m := germanMonthRe.FindStringSubmatch(raw); m != nil {
		month := germanMonths[strings.ToLower(m[2])]
		day := m[1]
		if len(day) == 1 {
			day = "0" + day
		}
		if t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[3], month, day)); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseDMY(m []string) (time.Time, bool) {
	t, err := time.Parse("02.01.2006", m[1]+"."+m[2]+"."+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func clamp(date, today time.Time) string {
	if date.After(today) {
		return today.Format("2006-01-02")
	}
	return date.Format("2006-01-02")
}
