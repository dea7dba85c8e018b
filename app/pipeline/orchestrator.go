// Package pipeline drives a source end to end: discover article references,
// fetch and extract each article, gate on keywords, classify, resolve
// location and date, and persist confirmed raids.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ProducerORG/razzia-tracker/app/classify"
	"github.com/ProducerORG/razzia-tracker/app/extract"
	"github.com/ProducerORG/razzia-tracker/app/fetch"
	"github.com/ProducerORG/razzia-tracker/app/resolve"
	"github.com/ProducerORG/razzia-tracker/app/sources"
	"github.com/ProducerORG/razzia-tracker/app/store"
)

// Terminal states of a single article. Every discovered reference ends in
// exactly one of them.
const (
	StatePersisted          = "persisted"
	StateRejectedNoContent  = "rejected_no_content"
	StateRejectedNoKeyword  = "rejected_no_keyword"
	StateRejectedNotIllegal = "rejected_not_illegal"
	StateSkippedExists      = "skipped_exists"
	StateSkippedTooOld      = "skipped_too_old"
	StateFailed             = "failed"
)

type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

type Discoverer interface {
	Discover(ctx context.Context, config *sources.Config) []sources.ArticleRef
}

type Classifier interface {
	Classify(ctx context.Context, text string) (*classify.Result, error)
}

type Store interface {
	Exists(ctx context.Context, articleURL string) bool
	Insert(ctx context.Context, record store.RaidRecord) error
}

// Stats counts article outcomes of one source run.
type Stats struct {
	Discovered int
	ByState    map[string]int
}

func (s *Stats) record(state string) {
	if s.ByState == nil {
		s.ByState = make(map[string]int)
	}
	s.ByState[state]++
}

// Orchestrator runs one source. Articles are processed sequentially in
// discovery order; a failing article never aborts the run.
type Orchestrator struct {
	config     *sources.Config
	fetcher    Fetcher
	discoverer Discoverer
	classifier Classifier
	store      Store
	gate       *KeywordGate
	location   *resolve.LocationResolver
	dates      *resolve.DateResolver
	retention  resolve.Retention
	extractor  *extract.Extractor
	now        func() time.Time
}

func NewOrchestrator(config *sources.Config, fetcher Fetcher, discoverer Discoverer,
	classifier Classifier, repo Store, geocoder resolve.Geocoder, keywords []string) (*Orchestrator, error) {

	strategies := make([]extract.Strategy, 0, len(config.Extract.Strategies))
	for _, s := range config.Extract.Strategies {
		strategies = append(strategies, extract.Strategy{Kind: s.Kind, Selector: s.Selector})
	}
	extractor, err := extract.New(strategies, config.Extract.StopPatterns)
	if err != nil {
		return nil, fmt.Errorf("building extractor for %s: %w", config.Name, err)
	}

	return &Orchestrator{
		config:     config,
		fetcher:    fetcher,
		discoverer: discoverer,
		classifier: classifier,
		store:      repo,
		gate:       NewKeywordGate(keywords, config.WholeWord),
		location:   resolve.NewLocationResolver(geocoder),
		dates:      resolve.NewDateResolver(config.Dates.Selectors),
		retention: resolve.Retention{
			Days:   config.Dates.Retention.Days,
			Cutoff: config.Dates.Retention.Cutoff,
		},
		extractor: extractor,
		now:       time.Now,
	}, nil
}

// Run processes the whole source and returns outcome counts.
func (o *Orchestrator) Run(ctx context.Context) *Stats {
	refs := o.discoverer.Discover(ctx, o.config)
	stats := &Stats{Discovered: len(refs)}

	slog.Info("Discovered articles", "source", o.config.Name, "count", len(refs))

	for _, ref := range refs {
		state, err := o.processArticle(ctx, ref)
		stats.record(state)
		if err != nil {
			slog.Warn("Article processing failed", "source", o.config.Name, "url", ref.URL, "error", err)
			continue
		}
		slog.Debug("Article processed", "source", o.config.Name, "url", ref.URL, "state", state)
	}

	return stats
}

func (o *Orchestrator) processArticle(ctx context.Context, ref sources.ArticleRef) (string, error) {
	if o.store.Exists(ctx, ref.URL) {
		return StateSkippedExists, nil
	}

	resp, err := o.fetcher.Get(ctx, ref.URL)
	if err != nil {
		return StateFailed, fmt.Errorf("fetching article: %w", err)
	}
	html := string(resp.Body)

	paragraphs, err := o.extractor.Run(html)
	if err != nil {
		if errors.Is(err, extract.ErrContentMissing) {
			return StateRejectedNoContent, nil
		}
		return StateFailed, fmt.Errorf("extracting article: %w", err)
	}
	text := strings.Join(paragraphs, "\n")

	if _, ok := o.gate.Match(ref.Title, text); !ok {
		return StateRejectedNoKeyword, nil
	}

	result, err := o.classifier.Classify(ctx, ref.Title+"\n"+text)
	if err != nil {
		return StateFailed, fmt.Errorf("classifying article: %w", err)
	}
	if !result.Illegal {
		return StateRejectedNotIllegal, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return StateFailed, fmt.Errorf("parsing article page: %w", err)
	}

	now := o.now()
	date := o.dates.Resolve(doc, ref.ListDate, now)
	parsed, err := time.Parse("2006-01-02", date)
	if err == nil && o.retention.TooOld(parsed, now) {
		return StateSkippedTooOld, nil
	}

	loc := o.location.Resolve(ctx, result, text, ref.ListRegion)
	summary := extract.Summary(paragraphs, extract.MetaDescription(doc))

	record := store.RaidRecord{
		Title:   extract.StripHTML(ref.Title),
		Summary: summary,
		Date:    date,
		URL:     ref.URL,
		Type:    result.Type,
		Scraper: o.config.Name,
	}
	if loc.Place != "" {
		record.Location = &loc.Place
	}
	record.Lat = loc.Lat
	record.Lon = loc.Lon
	if loc.FederalState != "" {
		record.FederalState = &loc.FederalState
	}

	if err := o.store.Insert(ctx, record); err != nil {
		return StateFailed, fmt.Errorf("persisting record: %w", err)
	}
	return StatePersisted, nil
}
