package cfg

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Shared store
	SupabaseURL string `long:"supabase-url" env:"SUPABASE_URL" description:"Base URL of the shared raids store (required)" required:"true"`
	SupabaseKey string `long:"supabase-key" env:"SUPABASE_KEY" description:"API key for the shared raids store (required)" required:"true"`

	// Semantic classifier
	OpenAIKey          string `long:"openai-key" env:"OPENAI_API_KEY" description:"API key for the semantic classifier"`
	OpenAIModel        string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4" description:"Chat model used for article classification"`
	ClassifierMaxChars int    `long:"classifier-max-chars" env:"CLASSIFIER_MAX_CHARS" default:"2000" description:"Maximum number of article characters sent to the classifier"`

	// Geocoder
	NominatimURL string `long:"nominatim-url" env:"NOMINATIM_URL" default:"https://nominatim.openstreetmap.org" description:"Base URL of the geocoding service"`

	// Scraper configuration
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing per-source configuration files"`
	Source     string `long:"source" env:"SOURCE" description:"Run only the named source (default: all configured sources)"`
	PageBudget int    `long:"page-budget" env:"PAGE_BUDGET" default:"0" description:"Override the per-source listing page budget (0 = per-source default)"`
	Keywords   string `long:"keywords" env:"KEYWORDS" default:"glücksspiel,spielhalle,spielautomat,casino,wettbüro,lotterie,online-casino,automatenspiel" description:"Comma-separated relevance keywords"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"razzia-tracker/1.0" description:"User agent string for HTTP requests"`
	LogPath   string `long:"log-path" env:"LOG_PATH" description:"Optional rotating log file path (stderr only if empty)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SupabaseURL:        strings.TrimRight(raw.SupabaseURL, "/"),
		SupabaseKey:        raw.SupabaseKey,
		OpenAIKey:          raw.OpenAIKey,
		OpenAIModel:        raw.OpenAIModel,
		ClassifierMaxChars: raw.ClassifierMaxChars,
		NominatimURL:       strings.TrimRight(raw.NominatimURL, "/"),
		SourcesDir:         raw.SourcesDir,
		Source:             raw.Source,
		PageBudget:         raw.PageBudget,
		Keywords:           splitKeywords(raw.Keywords),
		UserAgent:          raw.UserAgent,
		LogPath:            raw.LogPath,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func splitKeywords(s string) []string {
	var keywords []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}
