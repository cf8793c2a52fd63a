// Package deploy asks the static site host to rebuild with the latest dataset.
package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/logging"
)

// Trigger posts to a build hook.
type Trigger struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// New builds a Trigger for endpoint.
func New(endpoint string, timeout time.Duration, logger *zap.Logger) (*Trigger, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse rebuild endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rebuild endpoint is not configured")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Trigger{
		endpoint: u.String(),
		http:     &http.Client{Timeout: timeout},
		logger:   logging.OrNop(logger).Named("deploy"),
	}, nil
}

// Rebuild posts an empty form to the hook. Any non-2xx answer is an error.
func (t *Trigger) Rebuild(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(url.Values{}.Encode()))
	if err != nil {
		return fmt.Errorf("build rebuild request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("trigger rebuild: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("trigger rebuild: unexpected status %d", resp.StatusCode)
	}
	t.logger.Info("site rebuild triggered", zap.Int("status", resp.StatusCode))
	return nil
}
