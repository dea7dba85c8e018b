// Package geocode wraps the Nominatim HTTP API. The service is free and
// anonymous but requires a descriptive User-Agent and tolerates at most about
// one request per second, enforced here with a client-side limiter.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type Coords struct {
	Lat float64
	Lon float64
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

func New(baseURL, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search forward-geocodes a free-text place name, restricted to Germany, and
// returns the first hit or nil when the place is unknown.
func (c *Client) Search(ctx context.Context, place string) (*Coords, error) {
	query := url.Values{}
	query.Set("q", place+", Deutschland")
	query.Set("format", "json")
	query.Set("limit", "1")

	var results []searchResult
	if err := c.get(ctx, c.baseURL+"/search?"+query.Encode(), &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, fmt.Errorf("unparseable coordinates in geocoder response: %q/%q", results[0].Lat, results[0].Lon)
	}

	return &Coords{Lat: lat, Lon: lon}, nil
}

type reverseResult struct {
	Address struct {
		State string `json:"state"`
	} `json:"address"`
}

// ReverseState reverse-geocodes a coordinate pair and returns the
// administrative state ("Bundesland"), or "" when the response carries none.
func (c *Client) ReverseState(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var result reverseResult
	if err := c.get(ctx, c.baseURL+"/reverse?"+query.Encode(), &result); err != nil {
		return "", err
	}
	return result.Address.State, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	return nil
}
