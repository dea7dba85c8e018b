package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ProducerORG/razzia-tracker/app/cfg"
	"github.com/ProducerORG/razzia-tracker/app/classify"
	"github.com/ProducerORG/razzia-tracker/app/fetch"
	"github.com/ProducerORG/razzia-tracker/app/geocode"
	"github.com/ProducerORG/razzia-tracker/app/logger"
	"github.com/ProducerORG/razzia-tracker/app/pipeline"
	"github.com/ProducerORG/razzia-tracker/app/sources"
	"github.com/ProducerORG/razzia-tracker/app/store"
)

const fetchTimeout = 30 * time.Second

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logger.Setup(appCfg.LogPath, appCfg.Debug)

	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	log.Info("Starting razzia-tracker", "version", appCfg.Version)

	configs, err := sources.NewLoader(appCfg.SourcesDir).LoadAll()
	if err != nil {
		log.Error("Failed to load source configurations", "error", err)
		os.Exit(1)
	}
	if appCfg.Source != "" {
		configs = filterByName(configs, appCfg.Source)
		if len(configs) == 0 {
			log.Error("Unknown source", "source", appCfg.Source)
			os.Exit(1)
		}
	}
	if len(configs) == 0 {
		log.Error("No source configurations found", "dir", appCfg.SourcesDir)
		os.Exit(1)
	}
	log.Info("Loaded source configurations", "count", len(configs))

	// Shared downstream clients; the scrape client is per source so each
	// source gets its own politeness delay.
	classifier := classify.New(appCfg.OpenAIKey, appCfg.OpenAIModel, appCfg.ClassifierMaxChars)
	geocoder := geocode.New(appCfg.NominatimURL, appCfg.UserAgent)
	repo := store.NewRepository(appCfg.SupabaseURL, appCfg.SupabaseKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal, finishing current article", "signal", sig.String())
		cancel()
	}()

	total := &pipeline.Stats{}
	failedSources := 0
	for _, config := range configs {
		if appCfg.PageBudget > 0 {
			config.PageBudget = appCfg.PageBudget
		}

		client := fetch.New(appCfg.UserAgent, fetchTimeout, time.Duration(config.DelayMS)*time.Millisecond)
		orchestrator, err := pipeline.NewOrchestrator(config, client, sources.NewDiscoverer(client),
			classifier, repo, geocoder, appCfg.Keywords)
		if err != nil {
			log.Error("Failed to build source pipeline", "source", config.Name, "error", err)
			failedSources++
			continue
		}

		log.Info("Running source", "source", config.Name)
		stats := orchestrator.Run(ctx)
		total.Discovered += stats.Discovered
		for state, count := range stats.ByState {
			if total.ByState == nil {
				total.ByState = make(map[string]int)
			}
			total.ByState[state] += count
		}
		log.Info("Source finished", "source", config.Name,
			"discovered", stats.Discovered,
			"persisted", stats.ByState[pipeline.StatePersisted],
			"failed", stats.ByState[pipeline.StateFailed])

		if ctx.Err() != nil {
			log.Info("Run cancelled", "source", config.Name)
			break
		}
	}

	log.Info("Run complete",
		"discovered", total.Discovered,
		"persisted", total.ByState[pipeline.StatePersisted],
		"skipped_exists", total.ByState[pipeline.StateSkippedExists],
		"failed", total.ByState[pipeline.StateFailed],
		"failed_sources", failedSources)

	if failedSources == len(configs) {
		os.Exit(1)
	}
}

func filterByName(configs []*sources.Config, name string) []*sources.Config {
	var filtered []*sources.Config
	for _, config := range configs {
		if config.Name == name {
			filtered = append(filtered, config)
		}
	}
	return filtered
}
