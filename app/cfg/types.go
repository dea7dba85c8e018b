package cfg

type Cfg struct {
	// Shared store (Supabase-style REST)
	SupabaseURL string
	SupabaseKey string

	// Semantic classifier
	OpenAIKey          string
	OpenAIModel        string
	ClassifierMaxChars int

	// Geocoder
	NominatimURL string

	// Scraper configuration
	SourcesDir string
	Source     string
	PageBudget int
	Keywords   []string

	// Application metadata
	UserAgent string
	LogPath   string
	Debug     bool
	Version   string
}
