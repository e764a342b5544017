// Package memory provides an in-memory repository for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/score"
)

type listingKey struct {
	siteID    int64
	listingID string
}

// Store implements hunt.Repository entirely in memory. Unlike the pipeline
// itself, the store is safe for concurrent use so the progress API can read
// while a run writes.
type Store struct {
	mu        sync.RWMutex
	sites     []hunt.SiteConfig
	keywords  []hunt.Keyword
	criteria  map[int64][]score.Criterion
	listings  map[listingKey]*hunt.Listing
	order     []listingKey
	summaries []hunt.RunSummary
	enriched  map[listingKey]hunt.Enrichment
}

// NewStore returns an empty in-memory repository.
func NewStore() *Store {
	return &Store{
		criteria: make(map[int64][]score.Criterion),
		listings: make(map[listingKey]*hunt.Listing),
		enriched: make(map[listingKey]hunt.Enrichment),
	}
}

// NewSeeded returns a store preloaded with the default Seek site and two
// starter keywords, mirroring a fresh installation.
func NewSeeded() *Store {
	s := NewStore()
	s.sites = []hunt.SiteConfig{{
		ID:      1,
		Name:    "Seek",
		BaseURL: "https://www.seek.com.au",
	}}
	s.keywords = []hunt.Keyword{
		{ID: 1, Text: "Kitchen Hand", RoleID: 1},
		{ID: 2, Text: "Dishwasher", RoleID: 1},
	}
	return s
}

// SetSites replaces the site list.
func (s *Store) SetSites(sites []hunt.SiteConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites = append([]hunt.SiteConfig(nil), sites...)
}

// SetKeywords replaces the keyword list.
func (s *Store) SetKeywords(keywords []hunt.Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append([]hunt.Keyword(nil), keywords...)
}

// SetCriteria replaces the scoring rules for a site.
func (s *Store) SetCriteria(siteID int64, criteria []score.Criterion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria[siteID] = append([]score.Criterion(nil), criteria...)
}

func (s *Store) Sites(ctx context.Context) ([]hunt.SiteConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hunt.SiteConfig(nil), s.sites...), nil
}

func (s *Store) Keywords(ctx context.Context, userID int64) ([]hunt.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hunt.Keyword(nil), s.keywords...), nil
}

func (s *Store) Criteria(ctx context.Context, siteID, userID int64) ([]score.Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]score.Criterion(nil), s.criteria[siteID]...), nil
}

func (s *Store) SeenListingIDs(ctx context.Context, siteID int64) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range s.listings {
		if key.siteID == siteID {
			seen[key.listingID] = struct{}{}
		}
	}
	return seen, nil
}

func (s *Store) UpsertListing(ctx context.Context, l hunt.Listing) (bool, error) {
	if l.ListingID == "" {
		return false, fmt.Errorf("listing id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := listingKey{siteID: l.SiteID, listingID: l.ListingID}
	if _, exists := s.listings[key]; exists {
		return false, nil
	}
	stored := l
	if stored.Status == "" {
		stored.Status = hunt.StatusNew
	}
	s.listings[key] = &stored
	s.order = append(s.order, key)
	return true, nil
}

func (s *Store) UpdateListingScore(ctx context.Context, siteID int64, listingID string, scoreVal int, queued bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingKey{siteID: siteID, listingID: listingID}]
	if !ok {
		return fmt.Errorf("listing %s on site %d: %w", listingID, siteID, hunt.ErrNotFound)
	}
	l.Score = scoreVal
	if queued {
		l.Status = hunt.StatusQueuedDeep
	}
	return nil
}

func (s *Store) UpdateListingEnrichment(ctx context.Context, siteID int64, listingID string, e hunt.Enrichment, newScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := listingKey{siteID: siteID, listingID: listingID}
	l, ok := s.listings[key]
	if !ok {
		return fmt.Errorf("listing %s on site %d: %w", listingID, siteID, hunt.ErrNotFound)
	}
	l.Score = newScore
	l.Status = hunt.StatusEnriched
	s.enriched[key] = e
	return nil
}

// ListingsForEnrichment returns qualifying listings newest first, matching
// the capture order used by the SQL store.
func (s *Store) ListingsForEnrichment(ctx context.Context, siteID, keywordID int64, threshold, limit int) ([]hunt.EnrichTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []hunt.EnrichTarget
	for i := len(s.order) - 1; i >= 0 && len(targets) < limit; i-- {
		key := s.order[i]
		l := s.listings[key]
		if key.siteID != siteID || l.KeywordID != keywordID {
			continue
		}
		if l.Score < threshold {
			continue
		}
		if e, ok := s.enriched[key]; ok && e.Description != "" {
			continue
		}
		targets = append(targets, hunt.EnrichTarget{
			ListingID: l.ListingID,
			URL:       l.URL,
			Title:     l.Title,
			Location:  l.Location,
			Score:     l.Score,
		})
	}
	return targets, nil
}

func (s *Store) BucketCounts(ctx context.Context, siteID, keywordID int64) (hunt.Buckets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b hunt.Buckets
	for key, l := range s.listings {
		if key.siteID != siteID || l.KeywordID != keywordID {
			continue
		}
		switch {
		case l.Score <= 1:
			b.Low++
		case l.Score <= 3:
			b.Mid++
		default:
			b.High++
		}
	}
	return b, nil
}

func (s *Store) InsertRunSummary(ctx context.Context, sum hunt.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, sum)
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

// Listings returns all stored listings in capture order, for assertions.
func (s *Store) Listings() []hunt.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hunt.Listing, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.listings[key])
	}
	return out
}

// Enrichments returns captured enrichments keyed by listing id, for
// assertions.
func (s *Store) Enrichments() map[string]hunt.Enrichment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]hunt.Enrichment, len(s.enriched))
	for key, e := range s.enriched {
		out[key.listingID] = e
	}
	return out
}

// Summaries returns recorded run summaries sorted by keyword id.
func (s *Store) Summaries() []hunt.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]hunt.RunSummary(nil), s.summaries...)
	sort.Slice(out, func(i, j int) bool { return out[i].KeywordID < out[j].KeywordID })
	return out
}
