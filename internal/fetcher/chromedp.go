package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromedpConfig controls the headless browser transport.
type ChromedpConfig struct {
	UserAgent string
	Timeout   time.Duration
	// ExecPath overrides the browser binary; empty uses chromedp's lookup.
	ExecPath string
}

// ChromedpTransport implements Transport with headless Chrome, for sites that
// build their result pages client-side. It renders one page at a time.
type ChromedpTransport struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	timeout         time.Duration
	userAgent       string
	mu              sync.Mutex
}

// NewChromedpTransport starts the browser and checks it responds.
func NewChromedpTransport(cfg ChromedpConfig) (*ChromedpTransport, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpTransport{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		timeout:         timeout,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close shuts the browser down.
func (t *ChromedpTransport) Close() error {
	if t == nil {
		return nil
	}
	t.browserCancel()
	t.allocatorCancel()
	return nil
}

// Get navigates to rawURL and returns the rendered document. A non-2xx
// document response is reported as an error.
func (t *ChromedpTransport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tabCtx, cancelTab := chromedp.NewContext(t.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, t.timeout)
	defer cancelTask()

	stop := context.AfterFunc(ctx, cancelTask)
	defer stop()

	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		status.CompareAndSwap(0, resp.Response.Status)
	})

	var html string
	tasks := chromedp.Tasks{network.Enable()}
	if t.userAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(t.userAgent))
	}
	tasks = append(tasks,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chromedp fetch canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if code := status.Load(); code != 0 && (code < 200 || code >= 300) {
		return nil, fmt.Errorf("chromedp fetch %s: status %d", rawURL, code)
	}
	if html == "" {
		return nil, ErrNoResponse
	}
	return []byte(html), nil
}
