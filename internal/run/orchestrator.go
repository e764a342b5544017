package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/artifacts"
	"github.com/mwhitfield/jobhunter/internal/config"
	"github.com/mwhitfield/jobhunter/internal/dedup"
	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/progress"
	"github.com/mwhitfield/jobhunter/internal/score"
	"github.com/mwhitfield/jobhunter/internal/site"
)

// Orchestrator owns one full discovery run: every enabled site, every
// enabled keyword, discovery pass then deep pass. Everything runs
// sequentially on the shared browser session; a keyword failure is logged
// and the run moves on.
type Orchestrator struct {
	cfg       config.Config
	repo      hunt.Repository
	browser   hunt.Browser
	sink      progress.Sink
	snapshots *artifacts.Store
	logger    *zap.Logger
	runID     uuid.UUID
	now       func() time.Time
}

// NewOrchestrator wires a run. sink and snapshots may be nil.
func NewOrchestrator(cfg config.Config, repo hunt.Repository, browser hunt.Browser,
	sink progress.Sink, snapshots *artifacts.Store, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = progress.MultiSink{}
	}
	return &Orchestrator{
		cfg:       cfg,
		repo:      repo,
		browser:   browser,
		sink:      sink,
		snapshots: snapshots,
		logger:    logger,
		runID:     uuid.New(),
		now:       time.Now,
	}
}

// RunID identifies this run in summaries and logs.
func (o *Orchestrator) RunID() uuid.UUID {
	return o.runID
}

// Run executes the full pipeline. It returns an error only when the run
// cannot proceed at all; per-keyword failures are absorbed.
func (o *Orchestrator) Run(ctx context.Context) error {
	sites, err := o.repo.Sites(ctx)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	sites = o.filterSites(sites)
	if len(sites) == 0 {
		return fmt.Errorf("no enabled sites to scan")
	}

	keywords, err := o.repo.Keywords(ctx, o.cfg.UserID)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	if o.cfg.KeywordLimit > 0 && len(keywords) > o.cfg.KeywordLimit {
		keywords = keywords[:o.cfg.KeywordLimit]
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no enabled keywords to scan")
	}

	o.logger.Info("run starting",
		zap.String("run_id", o.runID.String()),
		zap.Int("sites", len(sites)),
		zap.Int("keywords", len(keywords)),
	)

	for _, st := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.runSite(ctx, st, keywords)
	}

	o.logger.Info("run finished", zap.String("run_id", o.runID.String()))
	return nil
}

func (o *Orchestrator) filterSites(sites []hunt.SiteConfig) []hunt.SiteConfig {
	if len(o.cfg.SitesInclude) == 0 {
		return sites
	}
	var out []hunt.SiteConfig
	for _, st := range sites {
		for _, want := range o.cfg.SitesInclude {
			if strings.EqualFold(strings.TrimSpace(want), st.Name) {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

func (o *Orchestrator) runSite(ctx context.Context, st hunt.SiteConfig, keywords []hunt.Keyword) {
	logger := o.logger.With(zap.String("site", st.Name))

	adapter := site.New(st, site.Options{
		SeekLocationSlug: o.cfg.Seek.LocationSlug,
		SeekDistanceKM:   o.cfg.Seek.DistanceKM,
	}, logger)

	criteria, err := o.repo.Criteria(ctx, st.ID, o.cfg.UserID)
	if err != nil {
		logger.Warn("criteria load failed, scoring with empty rule set", zap.Error(err))
		criteria = nil
	}

	gateway := dedup.NewGateway(ctx, o.repo, st.ID, logger)
	paginator := NewPaginator(o.browser, adapter, o.cfg.Pagination,
		o.snapshots, o.cfg.Browser.Highlight, logger)

	for i, kw := range keywords {
		if ctx.Err() != nil {
			return
		}
		if err := o.discoverKeyword(ctx, st, adapter, paginator, gateway, criteria, kw, i+1, len(keywords)); err != nil {
			logger.Error("keyword discovery failed, continuing",
				zap.String("keyword", kw.Text), zap.Error(err))
		}
	}

	if !o.cfg.DeepScan.Enabled {
		return
	}
	for i, kw := range keywords {
		if ctx.Err() != nil {
			return
		}
		if err := o.enrichKeyword(ctx, st, adapter, criteria, kw, i+1, len(keywords)); err != nil {
			logger.Error("keyword enrichment failed, continuing",
				zap.String("keyword", kw.Text), zap.Error(err))
		}
	}
}

// discoverKeyword runs the discovery pass for one keyword: traverse every
// results page, score each card, persist through the dedup gateway, and
// checkpoint progress after every page.
func (o *Orchestrator) discoverKeyword(ctx context.Context, st hunt.SiteConfig, adapter site.Adapter,
	paginator *Paginator, gateway *dedup.Gateway, criteria []score.Criterion,
	kw hunt.Keyword, index, totalKeywords int) error {

	before := gateway.Stats()
	processed := 0
	totalReported := 0

	err := paginator.Traverse(ctx, kw.Text, func(v PageVisit) error {
		totalReported = v.Total
		for _, card := range adapter.ParseCards(v.Doc) {
			res := score.Evaluate(score.Fields{
				Title:    card.Title,
				Company:  card.Company,
				Location: card.Location,
				URL:      card.URL,
			}, criteria, float64(o.cfg.Scoring.BaseScore))

			queued := res.QueueForEnrichment(o.cfg.Scoring.QueueThreshold)
			listing := hunt.Listing{
				ListingSummary: card,
				SiteID:         st.ID,
				KeywordID:      kw.ID,
			}
			gateway.Process(ctx, listing, res.Score, queued)
			processed++
		}
		o.publishDiscovery(ctx, st, kw, index, totalKeywords, processed, totalReported,
			statsDelta(gateway.Stats(), before))
		return nil
	})

	delta := statsDelta(gateway.Stats(), before)
	o.publishDiscovery(ctx, st, kw, index, totalKeywords, processed, totalReported, delta)

	if sumErr := o.repo.InsertRunSummary(ctx, hunt.RunSummary{
		RunID:             o.runID,
		KeywordID:         kw.ID,
		SiteID:            st.ID,
		ListingsFound:     delta.Inserted,
		SkippedDuplicates: delta.SkippedDuplicates,
		RecordedAt:        o.now(),
	}); sumErr != nil {
		o.logger.Warn("run summary insert failed",
			zap.String("keyword", kw.Text), zap.Error(sumErr))
	}
	return err
}

// enrichKeyword runs the deep pass for one keyword: load each queued
// listing's detail page, extract enrichment fields, and re-score with the
// description included. Checkpoints go out every few listings and at the end.
func (o *Orchestrator) enrichKeyword(ctx context.Context, st hunt.SiteConfig, adapter site.Adapter,
	criteria []score.Criterion, kw hunt.Keyword, index, totalKeywords int) error {

	targets, err := o.repo.ListingsForEnrichment(ctx, st.ID, kw.ID,
		o.cfg.DeepScan.Threshold, o.cfg.DeepScan.LimitPerKeyword)
	if err != nil {
		return fmt.Errorf("load enrichment targets: %w", err)
	}

	scanned := 0
	publish := func() {
		o.publishDeepScan(ctx, st, kw, index, totalKeywords, scanned, len(targets))
	}
	publish()

	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.enrichOne(ctx, st, adapter, criteria, target); err != nil {
			o.logger.Warn("enrichment failed, skipping listing",
				zap.String("listing_id", target.ListingID), zap.Error(err))
		} else {
			scanned++
		}
		if every := o.cfg.DeepScan.CheckpointEveryN; every > 0 && scanned > 0 && scanned%every == 0 {
			publish()
		}
	}
	publish()
	return nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, st hunt.SiteConfig, adapter site.Adapter,
	criteria []score.Criterion, target hunt.EnrichTarget) error {
	if target.URL == "" {
		return fmt.Errorf("listing %s has no url", target.ListingID)
	}
	if err := o.browser.Navigate(ctx, target.URL); err != nil {
		return err
	}
	if delay := o.cfg.DeepScan.SettleDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	html, err := o.browser.HTML(ctx)
	if err != nil {
		return err
	}
	if len(html) < o.cfg.Pagination.MinPageBytes {
		return fmt.Errorf("detail page for %s: %w", target.ListingID, hunt.ErrBlankPage)
	}
	doc, err := site.ParsePage(html)
	if err != nil {
		return err
	}

	enrichment := adapter.Enrich(doc)
	// Re-score over the newly available fields only, starting from the
	// stored score, so card-level rules are not applied twice.
	res := score.Evaluate(score.Fields{
		Description: enrichment.Description,
	}, criteria, float64(target.Score))

	return o.repo.UpdateListingEnrichment(ctx, st.ID, target.ListingID, enrichment, res.Score)
}

func (o *Orchestrator) publishDiscovery(ctx context.Context, st hunt.SiteConfig, kw hunt.Keyword,
	index, totalKeywords, processed, totalReported int, delta dedup.Stats) {
	buckets := o.bucketCounts(ctx, st.ID, kw.ID)
	o.publish(progress.Snapshot{
		Site:            st.Name,
		Phase:           progress.PhaseDiscovery,
		Keyword:         kw.Text,
		KeywordIndex:    index,
		TotalKeywords:   totalKeywords,
		ProcessedCount:  processed,
		TotalListings:   totalReported,
		NotSuitable:     buckets.Low,
		Suitable:        buckets.Mid,
		HighlySuitable:  buckets.High,
		SkippedExisting: delta.SkippedDuplicates,
	})
}

func (o *Orchestrator) publishDeepScan(ctx context.Context, st hunt.SiteConfig, kw hunt.Keyword,
	index, totalKeywords, scanned, totalDeep int) {
	buckets := o.bucketCounts(ctx, st.ID, kw.ID)
	o.publish(progress.Snapshot{
		Site:           st.Name,
		Phase:          progress.PhaseDeepScan,
		Keyword:        kw.Text,
		KeywordIndex:   index,
		TotalKeywords:  totalKeywords,
		NotSuitable:    buckets.Low,
		Suitable:       buckets.Mid,
		HighlySuitable: buckets.High,
		DeepScanned:    scanned,
		TotalDeep:      totalDeep,
	})
}

func (o *Orchestrator) bucketCounts(ctx context.Context, siteID, keywordID int64) hunt.Buckets {
	buckets, err := o.repo.BucketCounts(ctx, siteID, keywordID)
	if err != nil {
		o.logger.Warn("bucket recalculation failed", zap.Error(err))
		return hunt.Buckets{}
	}
	return buckets
}

func (o *Orchestrator) publish(s progress.Snapshot) {
	if err := o.sink.Publish(s); err != nil {
		o.logger.Warn("progress publish failed", zap.Error(err))
	}
}

func statsDelta(now, before dedup.Stats) dedup.Stats {
	return dedup.Stats{
		Inserted:          now.Inserted - before.Inserted,
		SkippedDuplicates: now.SkippedDuplicates - before.SkippedDuplicates,
		Dropped:           now.Dropped - before.Dropped,
		Failed:            now.Failed - before.Failed,
	}
}
