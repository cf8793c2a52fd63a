// Package fetcher issues outbound requests one at a time with a fixed pause
// before each attempt and a bounded number of attempts.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
)

// Defaults used when Config leaves a field unset.
const (
	DefaultDelay       = 3500 * time.Millisecond
	DefaultMaxAttempts = 3
)

// ErrNoResponse is returned by transports that finish without a body or an error.
var ErrNoResponse = errors.New("fetch produced no response")

// Transport performs a single GET without any pacing or retries.
type Transport interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Pauser blocks for the given delay or until ctx is done.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// Config controls pacing and retry bounds. A zero Delay disables pacing.
type Config struct {
	Delay       time.Duration
	MaxAttempts int
}

// Error reports a URL whose every attempt failed. It unwraps to the last cause.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fetcher serializes requests through a Transport. It pauses before every
// attempt regardless of the previous outcome and treats every transport error
// as retryable until MaxAttempts is reached.
type Fetcher struct {
	transport   Transport
	pauser      Pauser
	delay       time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// New builds a Fetcher around transport.
func New(transport Transport, cfg Config, logger *zap.Logger) *Fetcher {
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Fetcher{
		transport:   transport,
		pauser:      timerPauser{},
		delay:       delay,
		maxAttempts: attempts,
		logger:      logging.OrNop(logger).Named("fetcher"),
	}
}

// WithPauser swaps the pause implementation (tests use a recording pauser).
func (f *Fetcher) WithPauser(p Pauser) *Fetcher {
	if p != nil {
		f.pauser = p
	}
	return f
}

// Fetch returns the body of url. All but the last failure are logged and
// swallowed; the last one is returned wrapped in *Error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := f.pauser.Pause(ctx, f.delay); err != nil {
			return nil, fmt.Errorf("pause before %s: %w", url, err)
		}
		body, err := f.transport.Get(ctx, url)
		if err == nil {
			metrics.ObserveFetch(url, metrics.FetchSuccess, len(body))
			return body, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		if attempt < f.maxAttempts {
			metrics.ObserveFetch(url, metrics.FetchRetry, 0)
			f.logger.Warn("fetch failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.maxAttempts),
				zap.Error(err),
			)
		}
	}
	metrics.ObserveFetch(url, metrics.FetchFailed, 0)
	return nil, &Error{URL: url, Attempts: f.maxAttempts, Err: lastErr}
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
