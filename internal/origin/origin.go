// Package origin holds the geographic search scopes the crawler walks.
package origin

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Origin is one configured search scope on the classifieds site.
type Origin struct {
	ShortCode  string  `json:"short_code"`
	FullName   string  `json:"full_name"`
	RegionID   string  `json:"region_id"`
	RegionPath string  `json:"region_path"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Radius     float64 `json:"radius"`
}

// Known origins.
var (
	Quebec = Origin{
		ShortCode:  "quebec",
		FullName:   "Quebec City",
		RegionID:   "l1700124",
		RegionPath: "ville-de-quebec",
		Latitude:   46.834872,
		Longitude:  -71.264868,
		Radius:     30,
	}
	Montreal = Origin{
		ShortCode:  "montreal",
		FullName:   "Montréal",
		RegionID:   "l80002",
		RegionPath: "grand-montreal",
		Latitude:   45.5017,
		Longitude:  -73.5673,
		Radius:     30,
	}
	Sherbrooke = Origin{
		ShortCode:  "sherbrooke",
		FullName:   "Sherbrooke",
		RegionID:   "l1700156",
		RegionPath: "sherbrooke-qc",
		Latitude:   45.4042,
		Longitude:  -71.8929,
		Radius:     30,
	}
)

// DefaultEnabled lists the origin codes crawled when nothing is configured.
var DefaultEnabled = []string{Quebec.ShortCode}

// All returns every known origin in registry order.
func All() []Origin {
	return []Origin{Quebec, Montreal, Sherbrooke}
}

// Lookup finds an origin by short code, case-insensitively.
func Lookup(code string) (Origin, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	return lo.Find(All(), func(o Origin) bool {
		return o.ShortCode == code
	})
}

// Enabled resolves the configured codes to origins, preserving the given order
// and dropping repeats.
func Enabled(codes []string) ([]Origin, error) {
	if len(codes) == 0 {
		codes = DefaultEnabled
	}
	out := make([]Origin, 0, len(codes))
	for _, code := range lo.Uniq(codes) {
		o, ok := Lookup(code)
		if !ok {
			return nil, fmt.Errorf("unknown origin %q", code)
		}
		if lo.ContainsBy(out, func(existing Origin) bool { return existing.ShortCode == o.ShortCode }) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
