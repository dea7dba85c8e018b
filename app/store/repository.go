// Package store persists raid records to a Supabase-style PostgREST
// endpoint. The store is the only shared state between runs; everything
// else about a run is derivable from the source pages themselves.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RaidRecord is the canonical row shape of the raids table.
type RaidRecord struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Date         string   `json:"date"`
	Location     *string  `json:"location"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	URL          string   `json:"url"`
	FederalState *string  `json:"federal"`
	Type         string   `json:"type"`
	Scraper      string   `json:"scraper"`
}

type Repository struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewRepository(baseURL, apiKey string) *Repository {
	return &Repository{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Exists checks whether a record with the given article URL is already
// stored. Query failures are logged and reported as "not present" so a
// store outage degrades into potential duplicates rather than lost records.
func (r *Repository) Exists(ctx context.Context, articleURL string) bool {
	endpoint := fmt.Sprintf("%s/rest/v1/raids?select=url&url=eq.%s&limit=1",
		r.baseURL, url.QueryEscape(articleURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Warn("Duplicate check failed, treating as new", "url", articleURL, "error", err)
		return false
	}
	r.setHeaders(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Warn("Duplicate check failed, treating as new", "url", articleURL, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Warn("Duplicate check failed, treating as new", "url", articleURL, "status", resp.StatusCode)
		return false
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		slog.Warn("Duplicate check failed, treating as new", "url", articleURL, "error", err)
		return false
	}
	return len(rows) > 0
}

// Insert writes one record. Unlike Exists this is strict: any transport or
// HTTP error is returned to the caller.
func (r *Repository) Insert(ctx context.Context, record RaidRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	endpoint := r.baseURL + "/rest/v1/raids"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating insert request: %w", err)
	}
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inserting record: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func (r *Repository) setHeaders(req *http.Request) {
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
}
