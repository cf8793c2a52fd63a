package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.Kijiji.ca/b-appartement-condo", "www.kijiji.ca"},
		{"no scheme", "kijiji.ca/path", "kijiji.ca"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("metrics.test", FetchRetry))
	ObserveFetch("https://metrics.test/a", FetchRetry, 0)
	ObserveFetch("https://metrics.test/b", FetchRetry, 0)
	after := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("metrics.test", FetchRetry))
	if after-before != 2 {
		t.Errorf("expected 2 retry observations, got %f", after-before)
	}

	ObserveFetch("https://metrics.test/c", FetchSuccess, 512)
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics.test")); got < 512 {
		t.Errorf("expected at least 512 bytes recorded, got %f", got)
	}
}

func TestObserveGeocodeLabels(t *testing.T) {
	ObserveGeocode(true, false)
	if got := testutil.ToFloat64(geocodeLookupsTotal.WithLabelValues("found", "miss")); got < 1 {
		t.Errorf("expected found/miss to be counted, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.kijiji.ca", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
