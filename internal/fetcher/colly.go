package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls collector behavior.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyTransport implements Transport using a synchronous Colly collector.
type CollyTransport struct {
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewCollyTransport builds a CollyTransport. Revisits are allowed because the
// Fetcher retries the same URL and callers already deduplicate listings.
func NewCollyTransport(cfg CollyConfig) *CollyTransport {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	return &CollyTransport{baseCollector: c}
}

// Get executes a single HTTP GET. Non-2xx responses are reported as errors.
func (t *CollyTransport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
		got      bool
	)
	collector := t.baseCollector.Clone()
	configureHooks(collector, &body, &got, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("colly visit failed: %w", err)
		}
		if !got {
			return nil, ErrNoResponse
		}
		return body, nil
	}
}

func configureHooks(hooks collectorHooks, body *[]byte, got *bool, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
		*got = true
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
}
