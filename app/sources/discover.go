package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ProducerORG/razzia-tracker/app/fetch"
)

// Fetcher abstracts the HTTP client the discoverer walks listings with.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*fetch.Response, error)
}

// Discoverer walks the listing pages of a source and collects article
// references. Discovery is bounded in two ways: a page yielding no unseen
// article ends pagination, and the page budget caps it outright.
type Discoverer struct {
	fetcher Fetcher
	seen    map[string]bool
}

func NewDiscoverer(fetcher Fetcher) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		seen:    make(map[string]bool),
	}
}

// Discover walks all listings of the source. Listing failures are logged and
// skipped; a partial result is better than none.
func (d *Discoverer) Discover(ctx context.Context, config *Config) []ArticleRef {
	var refs []ArticleRef
	for i := range config.Listings {
		listing := &config.Listings[i]
		found, err := d.discoverListing(ctx, config, listing)
		if err != nil {
			slog.Warn("Listing discovery failed", "source", config.Name, "url", listing.URL, "error", err)
			continue
		}
		refs = append(refs, found...)
	}
	return refs
}

func (d *Discoverer) discoverListing(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	switch listing.Strategy {
	case "offset":
		return d.discoverPlaceholder(ctx, config, listing, "{offset}", 0, listing.OffsetStep)
	case "page":
		return d.discoverPlaceholder(ctx, config, listing, "{page}", listing.StartPage, 1)
	case "next_link":
		return d.discoverNextLink(ctx, config, listing)
	case "load_more":
		return d.discoverLoadMore(ctx, config, listing)
	case "rss":
		return d.discoverRSS(ctx, config, listing)
	case "drupal_ajax":
		return d.discoverDrupalAjax(ctx, config, listing)
	case "embedded_json":
		return d.discoverEmbeddedJSON(ctx, config, listing)
	case "single":
		return d.discoverSingle(ctx, config, listing)
	default:
		return nil, fmt.Errorf("unknown listing strategy: %s", listing.Strategy)
	}
}

// discoverPlaceholder handles the offset and page strategies, which differ
// only in the placeholder substituted into the URL and its step.
func (d *Discoverer) discoverPlaceholder(ctx context.Context, config *Config, listing *Listing, placeholder string, start, step int) ([]ArticleRef, error) {
	var refs []ArticleRef
	value := start
	for page := 0; page < config.PageBudget; page++ {
		pageURL := strings.ReplaceAll(listing.URL, placeholder, strconv.Itoa(value))
		// The portals treat the bare listing URL as offset zero.
		if value == 0 && placeholder == "{offset}" {
			if trimmed := strings.ReplaceAll(listing.URL, "/"+placeholder, ""); !strings.Contains(trimmed, placeholder) {
				pageURL = trimmed
			}
		}
		found, err := d.fetchAndParse(ctx, listing, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			slog.Warn("Listing page fetch failed, stopping pagination", "url", pageURL, "error", err)
			break
		}
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)
		value += step
	}
	return refs, nil
}

func (d *Discoverer) discoverNextLink(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	var refs []ArticleRef
	pageURL := listing.URL
	for page := 0; page < config.PageBudget && pageURL != ""; page++ {
		resp, err := d.fetcher.Get(ctx, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			slog.Warn("Listing page fetch failed, stopping pagination", "url", pageURL, "error", err)
			break
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return refs, fmt.Errorf("parsing listing page: %w", err)
		}
		found := d.parseItems(doc, listing, pageURL)
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)

		href, ok := doc.Find(listing.NextLink).First().Attr("href")
		if !ok {
			break
		}
		pageURL = resolveURL(pageURL, href)
	}
	return refs, nil
}

func (d *Discoverer) discoverLoadMore(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	var refs []ArticleRef
	pageURL := listing.URL
	for page := 0; page < config.PageBudget && pageURL != ""; page++ {
		resp, err := d.fetcher.Get(ctx, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			slog.Warn("Listing page fetch failed, stopping pagination", "url", pageURL, "error", err)
			break
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return refs, fmt.Errorf("parsing listing page: %w", err)
		}
		found := d.parseItems(doc, listing, pageURL)
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)

		next, ok := doc.Find(listing.LoadMore).First().Attr("data-url")
		if !ok {
			break
		}
		pageURL = resolveURL(pageURL, next)
	}
	return refs, nil
}

// discoverRSS walks a paged feed. The first page is the bare feed URL, later
// pages carry a page query parameter, and a page with no unseen item ends
// the walk.
func (d *Discoverer) discoverRSS(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	var refs []ArticleRef
	for i := 0; i < config.PageBudget; i++ {
		page := listing.StartPage + i
		pageURL := pagedURL(listing.URL, page, listing.StartPage)

		resp, err := d.fetcher.Get(ctx, pageURL)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			slog.Warn("Feed page fetch failed, stopping pagination", "url", pageURL, "error", err)
			break
		}
		feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("parsing feed: %w", err)
			}
			break
		}

		var found []ArticleRef
		for _, item := range feed.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" || d.seen[link] {
				continue
			}
			d.seen[link] = true
			listDate := item.Published
			if item.PublishedParsed != nil {
				listDate = item.PublishedParsed.Format("2006-01-02")
			}
			found = append(found, ArticleRef{
				Title:      strings.TrimSpace(item.Title),
				URL:        link,
				ListDate:   listDate,
				ListRegion: listing.Region,
			})
		}
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

// drupalSettings is the subset of the drupal-settings-json blob needed to
// replay the views/ajax pager requests the listing page issues itself.
type drupalSettings struct {
	Views struct {
		AjaxViews map[string]struct {
			ViewName      string `json:"view_name"`
			ViewDisplayID string `json:"view_display_id"`
			ViewArgs      string `json:"view_args"`
			ViewPath      string `json:"view_path"`
			ViewDomID     string `json:"view_dom_id"`
		} `json:"ajax_views"`
	} `json:"views"`
}

type ajaxCommand struct {
	Command string `json:"command"`
	Data    string `json:"data"`
}

func (d *Discoverer) discoverDrupalAjax(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	resp, err := d.fetcher.Get(ctx, listing.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}

	refs := d.parseItems(doc, listing, listing.URL)

	var settings drupalSettings
	raw := doc.Find(`script[data-drupal-selector="drupal-settings-json"]`).First().Text()
	if raw == "" || json.Unmarshal([]byte(raw), &settings) != nil || len(settings.Views.AjaxViews) == 0 {
		// No ajax pager on the page, the first batch is all there is.
		return refs, nil
	}

	var view struct {
		ViewName      string `json:"view_name"`
		ViewDisplayID string `json:"view_display_id"`
		ViewArgs      string `json:"view_args"`
		ViewPath      string `json:"view_path"`
		ViewDomID     string `json:"view_dom_id"`
	}
	for _, v := range settings.Views.AjaxViews {
		view = v
		break
	}

	for page := 1; page < config.PageBudget; page++ {
		form := url.Values{
			"view_name":       {view.ViewName},
			"view_display_id": {view.ViewDisplayID},
			"view_args":       {view.ViewArgs},
			"view_path":       {view.ViewPath},
			"view_dom_id":     {view.ViewDomID},
			"page":            {strconv.Itoa(page)},
		}
		ajaxResp, err := d.fetcher.PostForm(ctx, listing.AjaxURL, form)
		if err != nil {
			slog.Warn("Ajax pager request failed, stopping pagination", "url", listing.AjaxURL, "error", err)
			break
		}

		var commands []ajaxCommand
		if err := json.Unmarshal(ajaxResp.Body, &commands); err != nil {
			return refs, fmt.Errorf("parsing ajax response: %w", err)
		}
		var html strings.Builder
		for _, cmd := range commands {
			if cmd.Command == "insert" {
				html.WriteString(cmd.Data)
			}
		}
		batchDoc, err := goquery.NewDocumentFromReader(strings.NewReader(html.String()))
		if err != nil {
			return refs, fmt.Errorf("parsing ajax batch: %w", err)
		}
		found := d.parseItems(batchDoc, listing, listing.URL)
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

// discoverEmbeddedJSON walks pages whose listing data lives in an embedded
// JSON assignment. A page without the JSON blob means the pager ran past the
// last page.
func (d *Discoverer) discoverEmbeddedJSON(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	re, err := regexp.Compile(listing.JSONPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid json pattern: %w", err)
	}

	var refs []ArticleRef
	for i := 0; i < config.PageBudget; i++ {
		page := listing.StartPage + i
		pageURL := pagedURL(listing.URL, page, listing.StartPage)

		resp, err := d.fetcher.Get(ctx, pageURL)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			slog.Warn("Listing page fetch failed, stopping pagination", "url", pageURL, "error", err)
			break
		}

		m := re.FindSubmatch(resp.Body)
		if m == nil {
			if i == 0 {
				return nil, fmt.Errorf("embedded JSON not found in %s", pageURL)
			}
			break
		}
		var items []map[string]any
		if err := json.Unmarshal(m[1], &items); err != nil {
			if i == 0 {
				return nil, fmt.Errorf("parsing embedded JSON: %w", err)
			}
			break
		}

		var found []ArticleRef
		for _, item := range items {
			link := firstString(item, "url", "link", "href")
			if link == "" {
				continue
			}
			link = resolveURL(listing.URL, link)
			if d.seen[link] {
				continue
			}
			d.seen[link] = true
			found = append(found, ArticleRef{
				Title:      firstString(item, "title", "headline", "name"),
				URL:        link,
				ListDate:   firstString(item, "date", "datum", "published"),
				ListRegion: listing.Region,
			})
		}
		if len(found) == 0 {
			break
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

// pagedURL builds the URL for one page of a feed or embedded-JSON listing.
// The first page is the URL as configured; later pages substitute a {page}
// placeholder when present and append a page query parameter otherwise.
func pagedURL(rawURL string, page, start int) string {
	if strings.Contains(rawURL, "{page}") {
		return strings.ReplaceAll(rawURL, "{page}", strconv.Itoa(page))
	}
	if page == start {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "page=" + strconv.Itoa(page)
}

func (d *Discoverer) discoverSingle(ctx context.Context, config *Config, listing *Listing) ([]ArticleRef, error) {
	return d.fetchAndParse(ctx, listing, listing.URL)
}

func (d *Discoverer) fetchAndParse(ctx context.Context, listing *Listing, pageURL string) ([]ArticleRef, error) {
	resp, err := d.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}
	return d.parseItems(doc, listing, pageURL), nil
}

// parseItems extracts unseen article references from a listing document.
// Already-seen URLs are dropped here, which is also what terminates
// pagination: a page contributing nothing new ends the walk.
func (d *Discoverer) parseItems(doc *goquery.Document, listing *Listing, pageURL string) []ArticleRef {
	var refs []ArticleRef

	var titleStripRe *regexp.Regexp
	if listing.Item.TitleStrip != "" {
		titleStripRe, _ = regexp.Compile(listing.Item.TitleStrip)
	}

	container := doc.Selection
	if listing.Item.Container != "" {
		container = doc.Find(listing.Item.Container)
	}

	container.Find(listing.Item.Link).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if listing.Item.URLFilter != "" && !strings.Contains(href, listing.Item.URLFilter) {
			return
		}
		if listing.Item.URLExclude != "" && strings.Contains(href, listing.Item.URLExclude) {
			return
		}
		link := resolveURL(pageURL, href)
		if link == "" || d.seen[link] {
			return
		}

		title := strings.TrimSpace(sel.Text())
		item := sel.Closest(listing.Item.Container)
		if listing.Item.Title != "" && item.Length() > 0 {
			if t := strings.TrimSpace(item.Find(listing.Item.Title).First().Text()); t != "" {
				title = t
			}
		}
		if titleStripRe != nil {
			title = strings.TrimSpace(titleStripRe.ReplaceAllString(title, ""))
		}
		if title == "" {
			return
		}

		var listDate string
		if listing.Item.Date != "" && item.Length() > 0 {
			listDate = itemField(item, listing.Item.Date)
		}

		region := listing.Region
		if listing.Item.Region != "" && item.Length() > 0 {
			if r := itemField(item, listing.Item.Region); r != "" {
				region = strings.TrimSpace(strings.TrimPrefix(r, listing.Item.RegionStrip))
			}
		}

		d.seen[link] = true
		refs = append(refs, ArticleRef{
			Title:      title,
			URL:        link,
			ListDate:   listDate,
			ListRegion: region,
		})
	})

	return refs
}

// itemField reads a "css" or "css@attr" spec relative to an item node.
func itemField(item *goquery.Selection, spec string) string {
	css, attr, _ := strings.Cut(spec, "@")
	sel := item.Find(css).First()
	if sel.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, _ := sel.Attr(attr)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}

func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
