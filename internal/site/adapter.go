package site

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/hunt"
)

// Default selector templates applied when the site row leaves them blank.
const (
	defaultResultCountSelector = `[data-automation="totalJobsCountBcues"]`
	defaultCardSelector        = `article[data-automation="job-card"]`
	defaultTitleSelector       = `a[data-automation="jobTitle"]`
	defaultCompanySelector     = `[data-automation="jobCompany"]`
	defaultLocationSelector    = `[data-automation="jobLocation"]`
)

// Adapter knows how to build search URLs for one site and pull structured
// listings out of its rendered pages.
type Adapter interface {
	// Key names the adapter, for logs and artifacts.
	Key() string
	// SearchURL builds the results URL for a keyword and 1-based page number.
	SearchURL(keyword string, page int) string
	// WaitSelectors lists the selectors whose presence signals a loaded
	// results page. Any single match is enough.
	WaitSelectors() []string
	// CardSelector returns the preferred card selector, used for highlighting.
	CardSelector() string
	// TotalListings resolves the site-reported result total for a search.
	TotalListings(p *Page) (int, error)
	// PageSize resolves the cards-per-page count for pagination math. The
	// result is always >= 1.
	PageSize(p *Page, cardsOnPage int) int
	// ParseCards extracts one summary per results card. Cards with no
	// resolvable listing id are dropped, not errored.
	ParseCards(p *Page) []hunt.ListingSummary
	// Enrich extracts best-effort detail fields from a listing page.
	Enrich(p *Page) hunt.Enrichment
}

// Options carries site-family settings that come from run configuration
// rather than the sites table.
type Options struct {
	SeekLocationSlug string
	SeekDistanceKM   int
}

// New selects the adapter for a site. Seek gets its dedicated adapter; every
// other site runs on the selector-driven generic one.
func New(cfg hunt.SiteConfig, opts Options, logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.ToLower(cfg.Name + " " + cfg.BaseURL)
	if strings.Contains(name, "seek") {
		return NewSeekAdapter(cfg, opts, logger)
	}
	return NewGenericAdapter(cfg, logger)
}

// GenericAdapter parses any site whose selectors are stored on the site row.
type GenericAdapter struct {
	cfg    hunt.SiteConfig
	logger *zap.Logger
}

// NewGenericAdapter builds a selector-driven adapter, filling in defaults for
// any selector the site row leaves blank.
func NewGenericAdapter(cfg hunt.SiteConfig, logger *zap.Logger) *GenericAdapter {
	if cfg.ResultCountSelector == "" {
		cfg.ResultCountSelector = defaultResultCountSelector
	}
	if cfg.CardSelector == "" {
		cfg.CardSelector = defaultCardSelector
	}
	if cfg.TitleSelector == "" {
		cfg.TitleSelector = defaultTitleSelector
	}
	if cfg.CompanySelector == "" {
		cfg.CompanySelector = defaultCompanySelector
	}
	if cfg.LocationSelector == "" {
		cfg.LocationSelector = defaultLocationSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericAdapter{cfg: cfg, logger: logger}
}

func (a *GenericAdapter) Key() string { return "generic" }

func (a *GenericAdapter) SearchURL(keyword string, page int) string {
	return fmt.Sprintf("%s/jobs?keywords=%s&page=%d",
		strings.TrimRight(a.cfg.BaseURL, "/"), url.QueryEscape(keyword), page)
}

func (a *GenericAdapter) WaitSelectors() []string {
	return []string{a.cfg.ResultCountSelector, a.cfg.CardSelector}
}

func (a *GenericAdapter) CardSelector() string { return a.cfg.CardSelector }

var jobsPhrasePattern = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s+jobs\b`)

// TotalListings walks the count tiers: the configured banner selector, any
// totalJobsCount-ish node, a "N jobs" phrase in the page text, and finally the
// visible card count.
func (a *GenericAdapter) TotalListings(p *Page) (int, error) {
	total, tier, err := hunt.First(a.logger, "total_listings", []hunt.Strategy[int]{
		{Name: "banner", Run: nonZero(func() (int, error) {
			return countFromSelector(p, a.cfg.ResultCountSelector)
		})},
		{Name: "banner_loose", Run: nonZero(func() (int, error) {
			return countFromSelector(p, `[data-automation*="totalJobsCount"]`)
		})},
		{Name: "page_text", Run: nonZero(func() (int, error) {
			m := jobsPhrasePattern.FindStringSubmatch(p.Select("body").Text())
			if m == nil {
				return 0, fmt.Errorf("no jobs phrase: %w", hunt.ErrNotFound)
			}
			n, ok := firstNumber(m[1])
			if !ok {
				return 0, hunt.ErrNotFound
			}
			return n, nil
		})},
		{Name: "card_count", Run: func() (int, error) {
			return p.Select(a.cfg.CardSelector).Length(), nil
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("resolve total listings: %w", err)
	}
	a.logger.Debug("total listings resolved", zap.Int("total", total), zap.String("tier", tier))
	return total, nil
}

func (a *GenericAdapter) PageSize(p *Page, cardsOnPage int) int {
	return resolvePageSize(a.logger, p, cardsOnPage)
}

func (a *GenericAdapter) ParseCards(p *Page) []hunt.ListingSummary {
	return parseCardsWith(a.logger, a.cfg, p, []string{a.cfg.CardSelector})
}

func (a *GenericAdapter) Enrich(p *Page) hunt.Enrichment {
	return enrichFrom(p)
}

func countFromSelector(p *Page, selector string) (int, error) {
	sel := p.Select(selector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("selector %q: %w", selector, hunt.ErrNotFound)
	}
	n, ok := firstNumber(strings.TrimSpace(sel.Text()))
	if !ok {
		return 0, fmt.Errorf("selector %q has no number: %w", selector, hunt.ErrNotFound)
	}
	return n, nil
}

// nonZero adapts a count tier so a parsed zero falls through to the next
// tier. Only the final card-count tier may report a genuine zero.
func nonZero(run func() (int, error)) func() (int, error) {
	return func() (int, error) {
		n, err := run()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("zero count: %w", hunt.ErrNotFound)
		}
		return n, nil
	}
}

var (
	jobPathPattern   = regexp.MustCompile(`/job/(\d{5,12})\b`)
	jobIDJSONPattern = regexp.MustCompile(`"jobId"\s*:\s*"?(\d{5,12})`)
	bareIDPattern    = regexp.MustCompile(`(\d{5,12})`)
)

// parseCardsWith extracts summaries using the first card selector that
// matches anything. Title, company and location each try the configured
// selector first and then the known markup variants.
func parseCardsWith(logger *zap.Logger, cfg hunt.SiteConfig, p *Page, cardSelectors []string) []hunt.ListingSummary {
	var cards *goquery.Selection
	for _, sel := range cardSelectors {
		found := p.Select(sel)
		if found.Length() > 0 {
			cards = found
			break
		}
	}
	if cards == nil {
		return nil
	}

	var out []hunt.ListingSummary
	cards.Each(func(_ int, card *goquery.Selection) {
		s := extractCard(logger, cfg, card)
		if s.ListingID == "" {
			logger.Warn("card dropped, no listing id", zap.String("title", s.Title))
			return
		}
		out = append(out, s)
	})
	return out
}

func extractCard(logger *zap.Logger, cfg hunt.SiteConfig, card *goquery.Selection) hunt.ListingSummary {
	title := card.Find(cfg.TitleSelector).First()
	if title.Length() == 0 {
		title = card.Find(`a[data-automation="job-card-title"]`).First()
	}
	if title.Length() == 0 {
		title = card.Find(`a[href*='/job/']`).First()
	}

	href, _ := title.Attr("href")
	link := resolveURL(cfg.BaseURL, href)

	company := textFirst(card, cfg.CompanySelector, `[data-testid="company-name"]`)
	location := textFirst(card, cfg.LocationSelector, `[data-testid="job-location"]`)

	cardHTML, _ := goquery.OuterHtml(card)
	id, tier, err := hunt.First(logger, "listing_id", []hunt.Strategy[string]{
		{Name: "href_path", Run: func() (string, error) {
			return matchGroup(jobPathPattern, link)
		}},
		{Name: "data_attr", Run: func() (string, error) {
			if v, ok := card.Attr("data-job-id"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), nil
			}
			return "", fmt.Errorf("no data-job-id: %w", hunt.ErrNotFound)
		}},
		{Name: "embedded_json", Run: func() (string, error) {
			return matchGroup(jobIDJSONPattern, cardHTML)
		}},
		{Name: "href_digits", Run: func() (string, error) {
			return matchGroup(bareIDPattern, link)
		}},
	})
	if err == nil {
		logger.Debug("listing id resolved", zap.String("id", id), zap.String("tier", tier))
	}

	return hunt.ListingSummary{
		ListingID: id,
		Title:     strings.TrimSpace(title.Text()),
		Company:   company,
		Location:  location,
		URL:       link,
	}
}

func textFirst(card *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if t := strings.TrimSpace(card.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func matchGroup(re *regexp.Regexp, s string) (string, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("pattern %q: %w", re.String(), hunt.ErrNotFound)
	}
	return m[1], nil
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}
