// Package resolve implements the ordered fallback chains that fill the
// location and date fields of a raid record from whatever the source
// actually provides. Earlier chain links always win; a later link is only
// consulted when the earlier one produced nothing.
package resolve

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ProducerORG/razzia-tracker/app/classify"
	"github.com/ProducerORG/razzia-tracker/app/geocode"
)

type Geocoder interface {
	Search(ctx context.Context, place string) (*geocode.Coords, error)
	ReverseState(ctx context.Context, lat, lon float64) (string, error)
}

type Location struct {
	Place        string
	Lat          *float64
	Lon          *float64
	FederalState string
}

type LocationResolver struct {
	geocoder Geocoder
}

func NewLocationResolver(geocoder Geocoder) *LocationResolver {
	return &LocationResolver{geocoder: geocoder}
}

// Resolve fills place, coordinates and federal state independently:
//
//	place:        classifier -> text heuristic -> listing region hint
//	coordinates:  classifier -> forward geocode of the resolved place
//	federalState: classifier -> reverse geocode of the resolved coordinates
//
// A classifier-supplied value is never overridden by a fallback, and every
// field may legitimately stay empty.
func (r *LocationResolver) Resolve(ctx context.Context, cls *classify.Result, text, listRegion string) Location {
	loc := Location{
		Place:        cls.Place,
		Lat:          cls.Lat,
		Lon:          cls.Lon,
		FederalState: cls.FederalState,
	}

	if loc.Place == "" {
		loc.Place = PlaceFromText(text)
	}
	if loc.Place == "" {
		loc.Place = strings.TrimSpace(listRegion)
	}

	if loc.Lat == nil && loc.Place != "" {
		coords, err := r.geocoder.Search(ctx, loc.Place)
		if err != nil {
			slog.Warn("Forward geocoding failed", "place", loc.Place, "error", err)
		} else if coords != nil {
			loc.Lat = &coords.Lat
			loc.Lon = &coords.Lon
		}
	}

	if loc.FederalState == "" && loc.Lat != nil && loc.Lon != nil {
		state, err := r.geocoder.ReverseState(ctx, *loc.Lat, *loc.Lon)
		if err != nil {
			slog.Warn("Reverse geocoding failed", "lat", *loc.Lat, "lon", *loc.Lon, "error", err)
		} else {
			loc.FederalState = state
		}
	}

	return loc
}

// placeRe finds a capitalized token after a locative preposition. The
// capture starts with an uppercase letter (including umlauts) and continues
// over letters and hyphens.
var placeRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:in|bei|nahe)\s+([A-ZÄÖÜ][\p{L}-]*)`)

// placeStopwords are tokens the preposition pattern matches that are never
// place names ("in Richtung Köln", "in Höhe des Bahnhofs").
var placeStopwords = map[string]bool{
	"Richtung": true,
	"Höhe":     true,
}

var institutionRe = regexp.MustCompile(`(?i)polizei|kriminalpolizei|staatsanwaltschaft|feuerwehr`)

// PlaceFromText extracts the first plausible place name following one of the
// prepositions "in", "bei" or "nahe", skipping directional words and
// institutional nouns.
func PlaceFromText(text string) string {
	for _, match := range placeRe.FindAllStringSubmatch(text, -1) {
		candidate := match[1]
		if placeStopwords[candidate] || institutionRe.MatchString(candidate) {
			continue
		}
		return candidate
	}
	return ""
}
