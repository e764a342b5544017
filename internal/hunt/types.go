// Package hunt defines the domain types shared across the discovery pipeline
// and the interfaces for its external collaborators. By keeping the
// persistence and rendering layers behind interfaces, the pipeline can run
// against Postgres and headless Chrome in production and against in-memory
// fakes in tests.
package hunt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitfield/jobhunter/internal/score"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrNotFound indicates a lookup matched no row.
	ErrNotFound = errors.New("not found")
	// ErrBlankPage indicates a navigation produced no usable content.
	ErrBlankPage = errors.New("blank page")
)

// SiteConfig holds the identity and selector templates for one listings site.
// It is loaded once at run start and read-only thereafter.
type SiteConfig struct {
	ID      int64
	Name    string
	BaseURL string

	// Selector templates. Empty values fall back to adapter defaults.
	ResultCountSelector string
	CardSelector        string
	TitleSelector       string
	CompanySelector     string
	LocationSelector    string
}

// Keyword is one enabled search term owned by a role.
type Keyword struct {
	ID     int64
	Text   string
	RoleID int64
}

// ListingSummary carries the minimal fields extracted from a results card.
// ListingID may be empty when no identifier could be resolved; such candidates
// are dropped before they reach the dedup gateway.
type ListingSummary struct {
	ListingID string
	Title     string
	Company   string
	Location  string
	URL       string
}

// Listing is a persisted job posting keyed by (site, listing id).
type Listing struct {
	ListingSummary
	SiteID    int64
	KeywordID int64
	Score     int
	Status    string
}

// Listing status values.
const (
	StatusNew        = "new"
	StatusQueuedDeep = "queued_deep"
	StatusEnriched   = "enriched"
)

// Enrichment holds the best-effort fields extracted from a detail page.
// Missing fields are empty strings, never errors.
type Enrichment struct {
	Description string
	PayText     string
	ClosingDate string
}

// EnrichTarget identifies one listing queued for the deep enrichment pass.
type EnrichTarget struct {
	ListingID string
	URL       string
	Title     string
	Location  string
	Score     int
}

// Buckets tallies listings by suitability band.
type Buckets struct {
	Low  int
	Mid  int
	High int
}

// RunSummary records the outcome of one keyword traversal on one site.
type RunSummary struct {
	RunID             uuid.UUID
	KeywordID         int64
	SiteID            int64
	ListingsFound     int
	SkippedDuplicates int
	RecordedAt        time.Time
}

// Repository is the persistence collaborator. Implementations must make
// UpsertListing idempotent by (site id, listing id): a conflicting insert is
// success-as-no-op, reported via inserted=false.
type Repository interface {
	// Sites returns all enabled site configurations.
	Sites(ctx context.Context) ([]SiteConfig, error)
	// Keywords returns enabled keywords whose owning role is enabled.
	Keywords(ctx context.Context, userID int64) ([]Keyword, error)
	// Criteria loads the card-view scoring rules for a site/user.
	Criteria(ctx context.Context, siteID, userID int64) ([]score.Criterion, error)
	// SeenListingIDs preloads the known listing identifiers for a site.
	SeenListingIDs(ctx context.Context, siteID int64) (map[string]struct{}, error)
	// UpsertListing inserts a minimal listing row, reporting whether a new
	// row was created.
	UpsertListing(ctx context.Context, l Listing) (inserted bool, err error)
	// UpdateListingScore persists the computed score and enqueue decision.
	UpdateListingScore(ctx context.Context, siteID int64, listingID string, scoreVal int, queued bool) error
	// UpdateListingEnrichment persists the deep-scan fields and re-score.
	UpdateListingEnrichment(ctx context.Context, siteID int64, listingID string, e Enrichment, newScore int) error
	// ListingsForEnrichment selects listings eligible for the deep pass.
	ListingsForEnrichment(ctx context.Context, siteID, keywordID int64, threshold, limit int) ([]EnrichTarget, error)
	// BucketCounts aggregates suitability bands for a (site, keyword) pair.
	BucketCounts(ctx context.Context, siteID, keywordID int64) (Buckets, error)
	// InsertRunSummary records listings found and duplicates skipped.
	InsertRunSummary(ctx context.Context, s RunSummary) error
	// Close releases any held resources.
	Close()
}

// Browser is the rendering/automation collaborator. All calls are synchronous
// and act on a single shared browser session. Eval-based operations are used
// only for non-functional highlighting and count discovery, never for
// extraction decisions.
type Browser interface {
	// Navigate loads a URL in the session tab.
	Navigate(ctx context.Context, url string) error
	// HTML returns the fully rendered markup of the current page.
	HTML(ctx context.Context) (string, error)
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// CountSelector reports how many nodes match a CSS selector.
	CountSelector(ctx context.Context, selector string) (int, error)
	// Highlight outlines matching nodes. Best effort, diagnostics only.
	Highlight(ctx context.Context, selector string) error
	// Close tears the session down.
	Close()
}
