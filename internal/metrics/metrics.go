// Package metrics exposes Prometheus collectors for the apartment crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	FetchSuccess = "success"
	FetchRetry   = "retry"
	FetchFailed  = "failed"
)

var (
	fetchAttemptsTotal   *prometheus.CounterVec
	fetchBytesTotal      *prometheus.CounterVec
	indexPagesTotal      *prometheus.CounterVec
	listingsTotal        *prometheus.CounterVec
	extractionsTotal     *prometheus.CounterVec
	fieldsPresentTotal   *prometheus.CounterVec
	geocodeLookupsTotal  *prometheus.CounterVec
	uploadedObjectsTotal prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_fetch_attempts_total",
				Help: "Outbound fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		indexPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_index_pages_total",
				Help: "Result pages walked, labeled by origin.",
			},
			[]string{"origin"},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_listings_total",
				Help: "Distinct listings discovered, labeled by origin.",
			},
			[]string{"origin"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_extractions_total",
				Help: "Raw records processed by the extraction pass, labeled by status.",
			},
			[]string{"status"},
		)

		fieldsPresentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_fields_present_total",
				Help: "Extracted records where a field was populated, labeled by field.",
			},
			[]string{"field"},
		)

		geocodeLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_geocode_lookups_total",
				Help: "Geocoder lookups, labeled by result and cache status.",
			},
			[]string{"result", "cache"},
		)

		uploadedObjectsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "apartments_uploaded_objects_total",
				Help: "Dataset objects written to the object store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apartments_http_requests_total",
				Help: "Requests served by the metrics listener, labeled by route and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apartments_http_request_duration_seconds",
				Help:    "Latency of requests served by the metrics listener.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt and, on success, its size.
func ObserveFetch(rawURL string, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveIndexPage counts one walked result page.
func ObserveIndexPage(origin string) {
	Init()
	indexPagesTotal.WithLabelValues(origin).Inc()
}

// ObserveListings adds newly discovered listings for an origin.
func ObserveListings(origin string, n int) {
	Init()
	if n > 0 {
		listingsTotal.WithLabelValues(origin).Add(float64(n))
	}
}

// ObserveExtraction counts one processed raw record ("extracted" or "skipped").
func ObserveExtraction(status string) {
	Init()
	extractionsTotal.WithLabelValues(status).Inc()
}

// ObserveFieldPresent counts one populated field.
func ObserveFieldPresent(field string) {
	Init()
	fieldsPresentTotal.WithLabelValues(field).Inc()
}

// ObserveGeocode counts one geocoder lookup.
func ObserveGeocode(found bool, cacheHit bool) {
	Init()
	result, cache := "not_found", "miss"
	if found {
		result = "found"
	}
	if cacheHit {
		cache = "hit"
	}
	geocodeLookupsTotal.WithLabelValues(result, cache).Inc()
}

// ObserveUpload counts one uploaded object.
func ObserveUpload() {
	Init()
	uploadedObjectsTotal.Inc()
}
