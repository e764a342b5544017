// Package dedup guards listing persistence behind a per-site seen set so a
// traversal never writes the same listing twice and re-runs skip known rows.
package dedup

import (
	"context"

	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/hunt"
)

// Outcome classifies what happened to one candidate listing.
type Outcome int

const (
	// OutcomeInserted means a new row was created.
	OutcomeInserted Outcome = iota
	// OutcomeSkippedDuplicate means the listing was already known, either
	// from the preload or a concurrent insert surfaced as a key conflict.
	OutcomeSkippedDuplicate
	// OutcomeDropped means the candidate had no listing id and was discarded.
	OutcomeDropped
	// OutcomeFailed means persistence errored; the run continues.
	OutcomeFailed
)

// Stats counts gateway outcomes for one traversal.
type Stats struct {
	Inserted          int
	SkippedDuplicates int
	Dropped           int
	Failed            int
}

// Gateway deduplicates and persists listings for a single site.
type Gateway struct {
	repo   hunt.Repository
	logger *zap.Logger
	siteID int64
	seen   map[string]struct{}
	stats  Stats
}

// NewGateway builds a gateway with the site's known listing ids preloaded.
// A failed preload degrades to an empty set; the upsert conflict handling
// still keeps writes idempotent.
func NewGateway(ctx context.Context, repo hunt.Repository, siteID int64, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen, err := repo.SeenListingIDs(ctx, siteID)
	if err != nil {
		logger.Warn("seen-id preload failed, continuing with empty set",
			zap.Int64("site_id", siteID), zap.Error(err))
		seen = make(map[string]struct{})
	}
	logger.Debug("seen ids preloaded",
		zap.Int64("site_id", siteID), zap.Int("count", len(seen)))
	return &Gateway{repo: repo, logger: logger, siteID: siteID, seen: seen}
}

// Process persists one scored candidate. New rows get their score and queue
// decision written in a follow-up update; duplicates and id-less candidates
// are counted and skipped.
func (g *Gateway) Process(ctx context.Context, l hunt.Listing, scoreVal int, queued bool) Outcome {
	if l.ListingID == "" {
		g.stats.Dropped++
		g.logger.Warn("candidate dropped, no listing id", zap.String("title", l.Title))
		return OutcomeDropped
	}
	if _, ok := g.seen[l.ListingID]; ok {
		g.stats.SkippedDuplicates++
		return OutcomeSkippedDuplicate
	}

	inserted, err := g.repo.UpsertListing(ctx, l)
	if err != nil {
		g.stats.Failed++
		g.logger.Error("listing upsert failed",
			zap.String("listing_id", l.ListingID), zap.Error(err))
		return OutcomeFailed
	}
	g.seen[l.ListingID] = struct{}{}
	if !inserted {
		g.stats.SkippedDuplicates++
		return OutcomeSkippedDuplicate
	}

	if err := g.repo.UpdateListingScore(ctx, g.siteID, l.ListingID, scoreVal, queued); err != nil {
		g.logger.Warn("score update failed after insert",
			zap.String("listing_id", l.ListingID), zap.Error(err))
	}
	g.stats.Inserted++
	return OutcomeInserted
}

// Stats returns the running outcome counts.
func (g *Gateway) Stats() Stats {
	return g.stats
}
