// Package sources loads per-source YAML configurations and walks the
// listing pages they describe, yielding article references for the
// pipeline to process.
package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of source configurations
type Loader struct {
	sourcesDir string
}

// NewLoader creates a new configuration loader
func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads all YAML configuration files from the sources directory,
// sorted by source name for deterministic run order.
func (l *Loader) LoadAll() ([]*Config, error) {
	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	var configs []*Config
	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		configs = append(configs, config)
		slog.Debug("Loaded source configuration", "file", file, "source", config.Name)
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })

	return configs, nil
}

// loadFile loads a single YAML configuration file
func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

// setDefaults applies default values to configuration
func (l *Loader) setDefaults(config *Config) {
	if config.DelayMS == 0 {
		config.DelayMS = 1000
	}
	if config.PageBudget == 0 {
		config.PageBudget = 10
	}
	for i := range config.Listings {
		listing := &config.Listings[i]
		if listing.Strategy == "offset" && listing.OffsetStep == 0 {
			listing.OffsetStep = 30
		}
		if listing.Strategy == "page" && listing.StartPage == 0 {
			listing.StartPage = 1
		}
		if listing.Strategy == "embedded_json" && listing.JSONPattern == "" {
			listing.JSONPattern = `window\.montagedata\s*=\s*(\[.+?\]);`
		}
		// The Bavarian pager counts from 1, paged feeds from 0.
		if listing.Strategy == "embedded_json" && listing.StartPage == 0 {
			listing.StartPage = 1
		}
	}
}

var validStrategies = map[string]bool{
	"offset":        true,
	"page":          true,
	"next_link":     true,
	"load_more":     true,
	"rss":           true,
	"drupal_ajax":   true,
	"embedded_json": true,
	"single":        true,
}

// validate validates the configuration
func (l *Loader) validate(config *Config) error {
	if config.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if config.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if len(config.Listings) == 0 {
		return fmt.Errorf("at least one listing is required")
	}

	for i, listing := range config.Listings {
		if !validStrategies[listing.Strategy] {
			return fmt.Errorf("invalid listing strategy at index %d: %s", i, listing.Strategy)
		}
		if listing.URL == "" {
			return fmt.Errorf("listing URL is required at index %d", i)
		}
		needsItems := listing.Strategy != "rss" && listing.Strategy != "embedded_json"
		if needsItems && listing.Item.Link == "" {
			return fmt.Errorf("item link selector is required at index %d", i)
		}
	}

	if len(config.Extract.Strategies) == 0 {
		return fmt.Errorf("at least one extraction strategy is required")
	}

	if config.Dates.Retention.Days > 0 && config.Dates.Retention.Cutoff != "" {
		return fmt.Errorf("retention days and cutoff are mutually exclusive")
	}
	if config.Dates.Retention.Cutoff != "" {
		if _, err := time.Parse("2006-01-02", config.Dates.Retention.Cutoff); err != nil {
			return fmt.Errorf("invalid retention cutoff: %w", err)
		}
	}
	if config.Dates.Retention.Days < 0 {
		return fmt.Errorf("retention days must be non-negative")
	}
	if config.DelayMS < 0 {
		return fmt.Errorf("delay must be non-negative")
	}

	return nil
}
