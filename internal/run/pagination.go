// Package run drives the two-pass pipeline: paginated discovery, then deep
// enrichment of the best candidates.
package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/artifacts"
	"github.com/mwhitfield/jobhunter/internal/config"
	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/site"
)

// PageVisit is one loaded results page handed to the traversal callback.
type PageVisit struct {
	Page       int
	TotalPages int
	// Total is the site-reported result count, resolved on the first page.
	Total int
	Doc   *site.Page
}

// ErrAbortKeyword signals the callback wants to stop the current keyword
// without failing it.
var ErrAbortKeyword = errors.New("abort keyword")

// Paginator walks every results page of one keyword search in a single
// browser session.
type Paginator struct {
	browser   hunt.Browser
	adapter   site.Adapter
	cfg       config.PaginationConfig
	snapshots *artifacts.Store
	highlight bool
	logger    *zap.Logger
}

// NewPaginator builds a paginator. snapshots may be nil to disable page
// captures.
func NewPaginator(browser hunt.Browser, adapter site.Adapter, cfg config.PaginationConfig,
	snapshots *artifacts.Store, highlight bool, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{
		browser:   browser,
		adapter:   adapter,
		cfg:       cfg,
		snapshots: snapshots,
		highlight: highlight,
		logger:    logger,
	}
}

// Traverse loads every page of keyword's results, calling visit once per
// page. The page count is fixed after the first page: total and page size are
// resolved there and pages = ceil(total/pageSize). A page that stays blank
// after one reload aborts the keyword with hunt.ErrBlankPage.
func (p *Paginator) Traverse(ctx context.Context, keyword string, visit func(v PageVisit) error) error {
	doc, err := p.loadPage(ctx, keyword, 1)
	if err != nil {
		return err
	}

	cardsOnPage := len(p.adapter.ParseCards(doc))
	total, err := p.adapter.TotalListings(doc)
	if err != nil {
		p.logger.Warn("total listings unresolved, using card count",
			zap.String("keyword", keyword), zap.Error(err))
		total = cardsOnPage
	}
	pageSize := p.adapter.PageSize(doc, cardsOnPage)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	p.logger.Info("traversal planned",
		zap.String("keyword", keyword),
		zap.Int("total", total),
		zap.Int("page_size", pageSize),
		zap.Int("pages", totalPages),
	)

	for page := 1; ; page++ {
		if page > 1 {
			if doc, err = p.loadPage(ctx, keyword, page); err != nil {
				return err
			}
		}
		if err := visit(PageVisit{Page: page, TotalPages: totalPages, Total: total, Doc: doc}); err != nil {
			if errors.Is(err, ErrAbortKeyword) {
				return nil
			}
			return err
		}
		if page >= totalPages {
			return nil
		}
	}
}

// loadPage navigates to one results page and returns it parsed, reloading
// once if the first attempt comes up blank.
func (p *Paginator) loadPage(ctx context.Context, keyword string, page int) (*site.Page, error) {
	url := p.adapter.SearchURL(keyword, page)

	html, err := p.fetch(ctx, url)
	if errors.Is(err, hunt.ErrBlankPage) {
		p.logger.Warn("blank page, retrying once",
			zap.String("keyword", keyword), zap.Int("page", page))
		html, err = p.fetch(ctx, url)
	}
	if err != nil {
		return nil, fmt.Errorf("load page %d for %q: %w", page, keyword, err)
	}

	if p.snapshots != nil {
		if path, saveErr := p.snapshots.SavePage(p.adapter.Key(), keyword, page, html); saveErr != nil {
			p.logger.Warn("page snapshot failed", zap.Error(saveErr))
		} else {
			p.logger.Debug("page snapshot saved", zap.String("path", path))
		}
	}

	doc, err := site.ParsePage(html)
	if err != nil {
		return nil, fmt.Errorf("parse page %d for %q: %w", page, keyword, err)
	}
	return doc, nil
}

// fetch navigates, waits for recognizable content, settles, and returns the
// rendered HTML, or hunt.ErrBlankPage if nothing usable loaded.
func (p *Paginator) fetch(ctx context.Context, url string) (string, error) {
	if err := p.browser.Navigate(ctx, url); err != nil {
		return "", err
	}
	p.waitForContent(ctx)
	if p.cfg.SettleDelay() > 0 {
		select {
		case <-time.After(p.cfg.SettleDelay()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.highlight {
		if err := p.browser.Highlight(ctx, p.adapter.CardSelector()); err != nil {
			p.logger.Debug("highlight failed", zap.Error(err))
		}
	}

	loc, err := p.browser.Location(ctx)
	if err != nil {
		return "", err
	}
	html, err := p.browser.HTML(ctx)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(loc, "data:") || len(html) < p.cfg.MinPageBytes {
		return "", fmt.Errorf("location %q, %d bytes: %w", loc, len(html), hunt.ErrBlankPage)
	}
	return html, nil
}

// waitForContent polls until any wait selector matches or the bounded wait
// expires. Expiry is not an error: the blank-page check decides whether the
// page is usable.
func (p *Paginator) waitForContent(ctx context.Context) {
	deadline := time.Now().Add(p.cfg.WaitTimeout())
	for {
		for _, selector := range p.adapter.WaitSelectors() {
			count, err := p.browser.CountSelector(ctx, selector)
			if err == nil && count > 0 {
				return
			}
		}
		if time.Now().After(deadline) {
			p.logger.Debug("content wait expired")
			return
		}
		select {
		case <-time.After(p.cfg.PollInterval()):
		case <-ctx.Done():
			return
		}
	}
}
