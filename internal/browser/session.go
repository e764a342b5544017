// Package browser drives a single headless Chrome session via chromedp.
// The whole run shares one tab, so site-side session state (cookies, bot
// checks passed once) carries across every page load.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/config"
)

// Session is a live chromedp browser session implementing hunt.Browser.
// It is not safe for concurrent use; the pipeline is sequential by design.
type Session struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	timeout         time.Duration
	userAgent       string
}

// NewSession starts headless Chrome and opens the shared tab. The warmup Run
// forces allocation so startup failures surface here, not mid-traversal.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(cfg.UserAgent),
	); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	logger.Info("browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Duration("nav_timeout", cfg.NavTimeout()),
	)

	return &Session{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		timeout:         cfg.NavTimeout(),
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocatorCancel()
}

// Navigate loads a URL in the shared tab and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// HTML returns the rendered markup of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// Location returns the tab's current URL. Chrome reports "data:," style
// locations for failed or empty navigations, which callers use to detect
// blank pages.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("page location: %w", err)
	}
	return loc, nil
}

// CountSelector reports how many nodes currently match a CSS selector.
func (s *Session) CountSelector(ctx context.Context, selector string) (int, error) {
	script := fmt.Sprintf("document.querySelectorAll(%s).length", strconv.Quote(selector))
	var count int
	if err := s.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return count, nil
}

// Highlight outlines every node matching a selector. Used only when the
// session runs headful for debugging; failures are ignored by callers.
func (s *Session) Highlight(ctx context.Context, selector string) error {
	script := fmt.Sprintf(
		`(() => { const els = document.querySelectorAll(%s); for (const el of els) { el.style.outline = "2px solid red"; } return els.length; })()`,
		strconv.Quote(selector))
	var count int
	if err := s.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return fmt.Errorf("highlight %q: %w", selector, err)
	}
	return nil
}

// run executes tasks on the shared tab under the per-call timeout, honoring
// cancellation from the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	return chromedp.Run(taskCtx, actions...)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
