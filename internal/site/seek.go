package site

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/hunt"
)

// Seek's results markup has shifted between data-automation and data-testid
// attributes over time; the adapter tries every known variant.
var seekCardSelectors = []string{
	`article[data-testid="job-card"]`,
	`article[data-automation="normalJob"]`,
	`[data-automation="job-card"] article`,
	`article[id^="jobcard-"]`,
}

const seekTotalMessageSelector = `[data-automation="totalJobsMessage"]`

// defaultSeekPageSize is used when the page embeds no pageSize hint.
const defaultSeekPageSize = 22

var (
	slugPattern         = regexp.MustCompile(`[^A-Za-z0-9]+`)
	metaTotalPattern    = regexp.MustCompile(`(?i)with\s+(\d[\d,]*)\s+jobs?\s+found`)
	totalJSONPattern    = regexp.MustCompile(`"totalJobCount"\s*:\s*(\d+)`)
	pageSizeJSONPattern = regexp.MustCompile(`"pageSize"\s*:\s*(\d+)`)
)

// SeekAdapter targets seek.com.au, whose search URLs encode the keyword and
// location as path slugs.
type SeekAdapter struct {
	cfg          hunt.SiteConfig
	locationSlug string
	distanceKM   int
	logger       *zap.Logger
}

// NewSeekAdapter builds the Seek adapter. Location slug and search radius fall
// back to the Ringwood defaults when options leave them unset.
func NewSeekAdapter(cfg hunt.SiteConfig, opts Options, logger *zap.Logger) *SeekAdapter {
	if opts.SeekLocationSlug == "" {
		opts.SeekLocationSlug = "Ringwood-VIC-3134"
	}
	if opts.SeekDistanceKM <= 0 {
		opts.SeekDistanceKM = 10
	}
	if logger == nil {
		logger = zap.NewNop()
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
	return &SeekAdapter{
		cfg:          cfg,
		locationSlug: opts.SeekLocationSlug,
		distanceKM:   opts.SeekDistanceKM,
		logger:       logger,
	}
}

func (a *SeekAdapter) Key() string { return "seek" }

// SearchURL builds Seek's slug-style search path, e.g.
// https://www.seek.com.au/Kitchen-Hand-jobs/in-Ringwood-VIC-3134?distance=10&page=2.
func (a *SeekAdapter) SearchURL(keyword string, page int) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.TrimSpace(keyword), "-"), "-")
	return fmt.Sprintf("%s/%s-jobs/in-%s?distance=%d&page=%d",
		strings.TrimRight(a.cfg.BaseURL, "/"), slug, a.locationSlug, a.distanceKM, page)
}

func (a *SeekAdapter) WaitSelectors() []string {
	return append([]string{seekTotalMessageSelector}, seekCardSelectors...)
}

func (a *SeekAdapter) CardSelector() string { return seekCardSelectors[0] }

// TotalListings resolves the reported result total through four tiers: the
// results banner, the meta description, the embedded totalJobCount JSON and
// finally the visible card count.
func (a *SeekAdapter) TotalListings(p *Page) (int, error) {
	total, tier, err := hunt.First(a.logger, "total_listings", []hunt.Strategy[int]{
		{Name: "banner", Run: nonZero(func() (int, error) {
			return countFromSelector(p, seekTotalMessageSelector)
		})},
		{Name: "meta_description", Run: nonZero(func() (int, error) {
			content := p.Attr(`meta[name="description"]`, "content")
			m := metaTotalPattern.FindStringSubmatch(content)
			if m == nil {
				return 0, fmt.Errorf("meta description has no total: %w", hunt.ErrNotFound)
			}
			n, ok := firstNumber(m[1])
			if !ok {
				return 0, hunt.ErrNotFound
			}
			return n, nil
		})},
		{Name: "embedded_json", Run: nonZero(func() (int, error) {
			m := totalJSONPattern.FindStringSubmatch(p.Raw)
			if m == nil {
				return 0, fmt.Errorf("no totalJobCount in page: %w", hunt.ErrNotFound)
			}
			return strconv.Atoi(m[1])
		})},
		{Name: "card_count", Run: func() (int, error) {
			return len(a.ParseCards(p)), nil
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("resolve total listings: %w", err)
	}
	a.logger.Debug("total listings resolved", zap.Int("total", total), zap.String("tier", tier))
	return total, nil
}

func (a *SeekAdapter) PageSize(p *Page, cardsOnPage int) int {
	return resolvePageSize(a.logger, p, cardsOnPage)
}

func (a *SeekAdapter) ParseCards(p *Page) []hunt.ListingSummary {
	return parseCardsWith(a.logger, a.cfg, p, seekCardSelectors)
}

func (a *SeekAdapter) Enrich(p *Page) hunt.Enrichment {
	return enrichFrom(p)
}

// resolvePageSize reads the embedded pageSize hint, defaulting to 22. When a
// page already shows more cards than the hint claims, the card count wins so
// the page-count ceiling never undershoots.
func resolvePageSize(logger *zap.Logger, p *Page, cardsOnPage int) int {
	size := defaultSeekPageSize
	if m := pageSizeJSONPattern.FindStringSubmatch(p.Raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			size = n
		}
	}
	if cardsOnPage > size {
		logger.Debug("card count exceeds page size hint",
			zap.Int("hint", size), zap.Int("cards", cardsOnPage))
		size = cardsOnPage
	}
	if size < 1 {
		size = 1
	}
	return size
}
