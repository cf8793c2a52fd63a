// Package geocode resolves extracted addresses through the external geocoding
// service and stores the coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/mo"
)

// DefaultEndpoint is where the geocoding service listens by default.
const DefaultEndpoint = "http://localhost:5000"

const cacheHit = "HIT"

// ErrUnavailable marks a non-2xx answer from the geocoding service.
var ErrUnavailable = errors.New("geocoder unavailable")

// Location is a resolved address.
type Location struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
}

// Result is the answer for one lookup. Location is absent when the service
// could not resolve the address.
type Result struct {
	Location mo.Option[Location]
	CacheHit bool
}

type response struct {
	Result *struct {
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
		DisplayAddress string  `json:"display_address"`
	} `json:"result"`
	CacheType string `json:"cache_type"`
}

// Client talks to the geocoding service over HTTP.
type Client struct {
	endpoint *url.URL
	http     *http.Client
}

// NewClient builds a Client for endpoint.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse geocoder endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocoder endpoint %q must be absolute", endpoint)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{endpoint: u, http: &http.Client{Timeout: timeout}}, nil
}

// Geocode looks up one free-text address.
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("address", address)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("geocode %q: %w: status %d", address, ErrUnavailable, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("decode geocode response: %w", err)
	}

	out := Result{
		Location: mo.None[Location](),
		CacheHit: strings.EqualFold(body.CacheType, cacheHit),
	}
	if body.Result != nil {
		out.Location = mo.Some(Location{
			Latitude:         body.Result.Latitude,
			Longitude:        body.Result.Longitude,
			FormattedAddress: body.Result.DisplayAddress,
		})
	}
	return out, nil
}
