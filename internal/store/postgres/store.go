// Package postgres provides the Postgres-backed listing repository.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/score"
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// for tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN      string
	MaxConns int32
}

// Store implements hunt.Repository on Postgres.
type Store struct {
	pool   querier
	logger *zap.Logger
}

// NewStore connects a pooled store using the provided configuration.
func NewStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStoreWithPool(pool, logger)
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool querier, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Sites returns all enabled site configurations.
func (s *Store) Sites(ctx context.Context) ([]hunt.SiteConfig, error) {
	const query = `
SELECT site_id, site_name, base_url,
       COALESCE(result_count_selector, ''),
       COALESCE(card_selector, ''),
       COALESCE(title_selector, ''),
       COALESCE(company_selector, ''),
       COALESCE(location_selector, '')
FROM sites
WHERE enabled
ORDER BY site_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []hunt.SiteConfig
	for rows.Next() {
		var cfg hunt.SiteConfig
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.BaseURL,
			&cfg.ResultCountSelector, &cfg.CardSelector,
			&cfg.TitleSelector, &cfg.CompanySelector, &cfg.LocationSelector); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// Keywords returns enabled keywords whose owning role is enabled for the user.
func (s *Store) Keywords(ctx context.Context, userID int64) ([]hunt.Keyword, error) {
	const query = `
SELECT k.keyword_id, k.keyword, k.role_id
FROM keywords k
JOIN roles r ON r.role_id = k.role_id
WHERE k.enabled AND r.enabled AND r.user_id = $1
ORDER BY k.keyword_id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []hunt.Keyword
	for rows.Next() {
		var kw hunt.Keyword
		if err := rows.Scan(&kw.ID, &kw.Text, &kw.RoleID); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	return keywords, nil
}

// Criteria loads the card-view scoring rules for a site/user, normalizing
// stored field tags and methods onto the canonical forms.
func (s *Store) Criteria(ctx context.Context, siteID, userID int64) ([]score.Criterion, error) {
	const query = `
SELECT c.criterion_id,
       COALESCE(c.field_name, ''), COALESCE(c.tag, ''), COALESCE(c.method, ''),
       c.increase, c.decrease, c.min_score, c.max_score,
       COALESCE(i.value, ''), COALESCE(i.effect, '')
FROM criteria c
LEFT JOIN criterion_items i ON i.criterion_id = c.criterion_id
WHERE c.site_id = $1 AND c.user_id = $2 AND c.use_on_card_view
ORDER BY c.criterion_id, i.item_id`

	rows, err := s.pool.Query(ctx, query, siteID, userID)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()

	var (
		criteria []score.Criterion
		current  *score.Criterion
	)
	for rows.Next() {
		var (
			id                       int64
			fieldName, tag, method   string
			inc, dec, minVal, maxVal *float64
			itemValue, itemEffect    string
		)
		if err := rows.Scan(&id, &fieldName, &tag, &method,
			&inc, &dec, &minVal, &maxVal, &itemValue, &itemEffect); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		if current == nil || current.ID != id {
			criteria = append(criteria, score.Criterion{
				ID:       id,
				Field:    score.ResolveField(fieldName, tag),
				Method:   score.NormalizeMethod(method),
				Increase: inc,
				Decrease: dec,
				Min:      minVal,
				Max:      maxVal,
			})
			current = &criteria[len(criteria)-1]
		}
		if itemValue != "" || itemEffect != "" {
			current.Items = append(current.Items, score.Item{Value: itemValue, Effect: itemEffect})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate criteria: %w", err)
	}
	return criteria, nil
}

// SeenListingIDs preloads every known listing identifier for a site.
func (s *Store) SeenListingIDs(ctx context.Context, siteID int64) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT listing_id FROM listings WHERE site_id = $1`, siteID)
	if err != nil {
		return nil, fmt.Errorf("query seen ids: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen id: %w", err)
		}
		seen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen ids: %w", err)
	}
	return seen, nil
}

// UpsertListing inserts a minimal listing row, falling through older schema
// shapes when the structured insert is rejected. A key conflict is success
// with inserted=false on every tier.
func (s *Store) UpsertListing(ctx context.Context, l hunt.Listing) (bool, error) {
	if l.ListingID == "" {
		return false, fmt.Errorf("listing id is required")
	}

	inserted, tier, err := hunt.First(s.logger, "upsert_listing", []hunt.Strategy[bool]{
		{Name: "structured", Run: func() (bool, error) {
			return s.insertStructured(ctx, l)
		}},
		{Name: "legacy", Run: func() (bool, error) {
			return s.insertLegacy(ctx, l)
		}},
		{Name: "column_probe", Run: func() (bool, error) {
			return s.insertByColumns(ctx, l)
		}},
	})
	if err != nil {
		return false, fmt.Errorf("upsert listing %s: %w", l.ListingID, err)
	}
	if tier != "structured" {
		s.logger.Warn("listing upsert degraded",
			zap.String("listing_id", l.ListingID), zap.String("tier", tier))
	}
	return inserted, nil
}

func (s *Store) insertStructured(ctx context.Context, l hunt.Listing) (bool, error) {
	const query = `
INSERT INTO listings (site_id, listing_id, keyword_id, title, company, location, url, status, captured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (site_id, listing_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		l.SiteID, l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// insertLegacy targets the pre-split schema where listings were keyed by
// listing_id alone and carried no site column.
func (s *Store) insertLegacy(ctx context.Context, l hunt.Listing) (bool, error) {
	const query = `
INSERT INTO job_listings (listing_id, keyword_id, title, company, location, url, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (listing_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// insertByColumns probes information_schema for the columns that actually
// exist and inserts only those, so the raw tier survives schema drift.
func (s *Store) insertByColumns(ctx context.Context, l hunt.Listing) (bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = 'listings'`)
	if err != nil {
		return false, fmt.Errorf("probe columns: %w", err)
	}
	defer rows.Close()

	available := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan column name: %w", err)
		}
		available[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate columns: %w", err)
	}

	if _, ok := available["listing_id"]; !ok {
		return false, fmt.Errorf("listings table missing listing_id column")
	}
	if _, ok := available["keyword_id"]; !ok {
		return false, fmt.Errorf("listings table missing keyword_id column")
	}

	cols := []string{"listing_id", "keyword_id"}
	args := []any{l.ListingID, l.KeywordID}
	optional := []struct {
		name  string
		value any
	}{
		{"site_id", l.SiteID},
		{"title", l.Title},
		{"company", l.Company},
		{"location", l.Location},
		{"url", l.URL},
		{"status", hunt.StatusNew},
	}
	for _, opt := range optional {
		if _, ok := available[opt.name]; ok {
			cols = append(cols, opt.name)
			args = append(args, opt.value)
		}
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	colSQL := strings.Join(cols, ", ")
	valSQL := strings.Join(placeholders, ", ")
	if _, ok := available["captured_at"]; ok {
		colSQL += ", captured_at"
		valSQL += ", now()"
	}
	query := fmt.Sprintf(
		"INSERT INTO listings (%s) VALUES (%s) ON CONFLICT DO NOTHING", colSQL, valSQL)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateListingScore persists the preliminary score and, when queued, marks
// the listing for the deep pass.
func (s *Store) UpdateListingScore(ctx context.Context, siteID int64, listingID string, scoreVal int, queued bool) error {
	const query = `
UPDATE listings
SET suitability_score = $3,
    status = CASE WHEN $4 THEN 'queued_deep' ELSE status END
WHERE site_id = $1 AND listing_id = $2`

	tag, err := s.pool.Exec(ctx, query, siteID, listingID, scoreVal, queued)
	if err != nil {
		return fmt.Errorf("update listing score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s on site %d: %w", listingID, siteID, hunt.ErrNotFound)
	}
	return nil
}

// UpdateListingEnrichment persists the deep-scan fields and the re-score.
func (s *Store) UpdateListingEnrichment(ctx context.Context, siteID int64, listingID string, e hunt.Enrichment, newScore int) error {
	const query = `
UPDATE listings
SET description = $3, pay_rate = $4, closing_date = $5,
    suitability_score = $6, status = 'enriched'
WHERE site_id = $1 AND listing_id = $2`

	tag, err := s.pool.Exec(ctx, query,
		siteID, listingID, e.Description, e.PayText, e.ClosingDate, newScore)
	if err != nil {
		return fmt.Errorf("update listing enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s on site %d: %w", listingID, siteID, hunt.ErrNotFound)
	}
	return nil
}

// ListingsForEnrichment selects high-scoring listings whose description has
// not been captured yet, newest first. Emptiness of the description, not the
// status column, decides eligibility: a deep visit that stored no extractable
// text leaves the listing selectable for a later pass.
func (s *Store) ListingsForEnrichment(ctx context.Context, siteID, keywordID int64, threshold, limit int) ([]hunt.EnrichTarget, error) {
	const query = `
SELECT listing_id, COALESCE(url, ''), COALESCE(title, ''), COALESCE(location, ''),
       COALESCE(suitability_score, 0)
FROM listings
WHERE site_id = $1 AND keyword_id = $2
  AND suitability_score >= $3
  AND (description IS NULL OR description = '')
ORDER BY captured_at DESC
LIMIT $4`

	rows, err := s.pool.Query(ctx, query, siteID, keywordID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("query enrichment targets: %w", err)
	}
	defer rows.Close()

	var targets []hunt.EnrichTarget
	for rows.Next() {
		var t hunt.EnrichTarget
		if err := rows.Scan(&t.ListingID, &t.URL, &t.Title, &t.Location, &t.Score); err != nil {
			return nil, fmt.Errorf("scan enrichment target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrichment targets: %w", err)
	}
	return targets, nil
}

// BucketCounts aggregates listings into suitability bands for one keyword.
func (s *Store) BucketCounts(ctx context.Context, siteID, keywordID int64) (hunt.Buckets, error) {
	const query = `
SELECT COUNT(*) FILTER (WHERE suitability_score <= 1),
       COUNT(*) FILTER (WHERE suitability_score BETWEEN 2 AND 3),
       COUNT(*) FILTER (WHERE suitability_score >= 4)
FROM listings
WHERE site_id = $1 AND keyword_id = $2`

	var b hunt.Buckets
	if err := s.pool.QueryRow(ctx, query, siteID, keywordID).Scan(&b.Low, &b.Mid, &b.High); err != nil {
		return hunt.Buckets{}, fmt.Errorf("query bucket counts: %w", err)
	}
	return b, nil
}

// InsertRunSummary records one keyword traversal's outcome.
func (s *Store) InsertRunSummary(ctx context.Context, sum hunt.RunSummary) error {
	const query = `
INSERT INTO run_summaries (run_id, keyword_id, site_id, listings_found, skipped_duplicates, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, query,
		sum.RunID, sum.KeywordID, sum.SiteID, sum.ListingsFound, sum.SkippedDuplicates, sum.RecordedAt); err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}
