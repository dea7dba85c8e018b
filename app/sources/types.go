package sources

// Config describes one press portal: how its listing pages are walked,
// how article text is extracted and how publication dates are found.
type Config struct {
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"`
	Listings []Listing     `yaml:"listings"`
	Extract  ExtractConfig `yaml:"extract"`
	Dates    DateConfig    `yaml:"dates"`

	// WholeWord switches keyword matching from substring to
	// word-boundary mode for this source.
	WholeWord  bool `yaml:"whole_word"`
	DelayMS    int  `yaml:"delay_ms"`
	PageBudget int  `yaml:"page_budget"`
}

// Listing describes one listing endpoint of a source. A source may have
// several, e.g. one per police directorate.
type Listing struct {
	// Strategy selects the pagination mechanism: offset, page, next_link,
	// load_more, rss, drupal_ajax, embedded_json or single.
	Strategy string `yaml:"strategy"`

	// URL is the listing URL. For offset and page strategies it contains
	// an {offset} or {page} placeholder.
	URL string `yaml:"url"`

	StartPage  int `yaml:"start_page"`
	OffsetStep int `yaml:"offset_step"`

	// Region is a fixed region hint attached to every article found on
	// this listing.
	Region string `yaml:"region"`

	Item ItemSelectors `yaml:"item"`

	// NextLink locates the "next page" anchor for the next_link strategy.
	NextLink string `yaml:"next_link"`

	// LoadMore locates the load-more button whose data-url attribute
	// points at the next batch.
	LoadMore string `yaml:"load_more"`

	// JSONPattern extracts the embedded JSON array for the embedded_json
	// strategy. Defaults to the montagedata assignment.
	JSONPattern string `yaml:"json_pattern"`

	// AjaxURL is the Drupal views endpoint for the drupal_ajax strategy.
	AjaxURL string `yaml:"ajax_url"`
}

// ItemSelectors locate article references inside a listing page.
type ItemSelectors struct {
	Container string `yaml:"container"`
	Link      string `yaml:"link"`
	Title     string `yaml:"title"`
	Date      string `yaml:"date"`

	// Region locates a per-item region label, e.g. the Ereignisort row.
	Region      string `yaml:"region"`
	RegionStrip string `yaml:"region_strip"`

	// URLFilter keeps only links whose href contains the substring;
	// URLExclude drops links whose href contains it.
	URLFilter  string `yaml:"url_filter"`
	URLExclude string `yaml:"url_exclude"`

	// TitleStrip removes a prefix pattern from titles, e.g. "POL-XX:".
	TitleStrip string `yaml:"title_strip"`
}

// ExtractConfig configures the content extraction strategy chain.
type ExtractConfig struct {
	Strategies   []Strategy `yaml:"strategies"`
	StopPatterns []string   `yaml:"stop_patterns"`
}

// Strategy is one link of the extraction chain.
type Strategy struct {
	Kind     string `yaml:"kind"`
	Selector string `yaml:"selector"`
}

// DateConfig configures date resolution for article pages.
type DateConfig struct {
	// Selectors are tried in order; each is "css" or "css@attr".
	Selectors []string        `yaml:"selectors"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig bounds how old an article may be. Days counts back from
// today; Cutoff is a fixed ISO date. At most one is set.
type RetentionConfig struct {
	Days   int    `yaml:"days"`
	Cutoff string `yaml:"cutoff"`
}

// ArticleRef is one article discovered on a listing page, before its page
// has been fetched.
type ArticleRef struct {
	Title      string
	URL        string
	ListDate   string
	ListRegion string
}
