// Package extract turns raw article HTML into an ordered paragraph sequence.
//
// Every source carries an ordered list of extraction strategies. Strategies
// are tried in order and the first one yielding at least one non-empty
// paragraph wins; later strategies are never consulted. After selection the
// paragraph walk is cut off at the first line matching a stop pattern, which
// drops the contact/boilerplate blocks the press portals append below the
// actual report.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
)

// ErrContentMissing reports that no strategy produced article text.
var ErrContentMissing = errors.New("no article text found")

// Strategy kinds, tried in configured order.
const (
	// StrategyContainer selects the first element matching the selector and
	// collects the p elements inside it.
	StrategyContainer = "container"
	// StrategySelector collects all elements matching the selector as
	// paragraphs.
	StrategySelector = "selector"
	// StrategyReadability runs the readability article extractor.
	StrategyReadability = "readability"
	// StrategyParagraphs collects every p element. Universal last resort.
	StrategyParagraphs = "paragraphs"
	// StrategyMetaDescription uses the page's description meta tag as the
	// whole article text. Paywalled portals serve the teaser there while
	// the body stays empty.
	StrategyMetaDescription = "meta_description"
)

type Strategy struct {
	Kind     string
	Selector string
}

// DefaultStopPatterns cuts the paragraph walk at the boilerplate sections
// shared by most of the press portals.
var DefaultStopPatterns = []string{
	"weitere meldungen",
	"original-content",
	"druckversion",
	"pdf-version",
	"orte in dieser meldung",
	"themen in dieser meldung",
	"rückfragen bitte an",
}

type Extractor struct {
	strategies []Strategy
	stop       []*regexp.Regexp
}

func New(strategies []Strategy, stopPatterns []string) (*Extractor, error) {
	if len(strategies) == 0 {
		strategies = []Strategy{{Kind: StrategyParagraphs}}
	}
	if len(stopPatterns) == 0 {
		stopPatterns = DefaultStopPatterns
	}

	stop := make([]*regexp.Regexp, 0, len(stopPatterns))
	for _, p := range stopPatterns {
		re, err := regexp.Compile("(?i)^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid stop pattern %q: %w", p, err)
		}
		stop = append(stop, re)
	}

	for _, s := range strategies {
		switch s.Kind {
		case StrategyContainer, StrategySelector:
			if s.Selector == "" {
				return nil, fmt.Errorf("strategy %q requires a selector", s.Kind)
			}
		case StrategyReadability, StrategyParagraphs, StrategyMetaDescription:
		default:
			return nil, fmt.Errorf("unknown extraction strategy %q", s.Kind)
		}
	}

	return &Extractor{strategies: strategies, stop: stop}, nil
}

// Run extracts the ordered paragraph sequence from html. The result is
// deterministic: identical input always yields identical paragraphs and an
// identical cutoff point.
func (e *Extractor) Run(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var selected []string
	for _, s := range e.strategies {
		selected = e.collect(s, doc, html)
		if len(selected) > 0 {
			break
		}
	}
	if len(selected) == 0 {
		return nil, ErrContentMissing
	}

	return e.truncate(selected), nil
}

func (e *Extractor) collect(s Strategy, doc *goquery.Document, html string) []string {
	switch s.Kind {
	case StrategyContainer:
		return paragraphTexts(doc.Find(s.Selector).First().Find("p"))
	case StrategySelector:
		return paragraphTexts(doc.Find(s.Selector))
	case StrategyParagraphs:
		return paragraphTexts(doc.Find("p"))
	case StrategyMetaDescription:
		if desc := MetaDescription(doc); desc != "" {
			return []string{desc}
		}
		return nil
	case StrategyReadability:
		article, err := readability.FromReader(strings.NewReader(html), nil)
		if err != nil {
			return nil
		}
		var paragraphs []string
		for _, line := range strings.Split(article.TextContent, "\n") {
			if line = normalizeSpace(line); line != "" {
				paragraphs = append(paragraphs, line)
			}
		}
		return paragraphs
	}
	return nil
}

// truncate keeps paragraphs up to (excluding) the first stop-pattern match.
func (e *Extractor) truncate(paragraphs []string) []string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if e.isStopLine(p) {
			break
		}
		kept = append(kept, p)
	}
	return kept
}

func (e *Extractor) isStopLine(line string) bool {
	for _, re := range e.stop {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func paragraphTexts(sel *goquery.Selection) []string {
	var paragraphs []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := normalizeSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs
}

var spaceRe = regexp.MustCompile(`[\s\x{00a0}]+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
