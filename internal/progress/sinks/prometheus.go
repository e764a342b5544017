package sinks

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwhitfield/jobhunter/internal/progress"
)

// PrometheusSink exports the latest progress snapshot as gauges. It owns all
// its collectors so tests can register against a private registry.
type PrometheusSink struct {
	mu sync.Mutex

	runInfo         *prometheus.GaugeVec
	processed       prometheus.Gauge
	totalListings   prometheus.Gauge
	notSuitable     prometheus.Gauge
	suitable        prometheus.Gauge
	highlySuitable  prometheus.Gauge
	skippedExisting prometheus.Gauge
	deepScanned     prometheus.Gauge
	totalDeep       prometheus.Gauge
	keywordIndex    prometheus.Gauge
	totalKeywords   prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	s := &PrometheusSink{
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobhunter_run_info",
			Help: "Current site, phase and keyword, value fixed at 1.",
		}, []string{"site", "phase", "keyword"}),
		processed:       gauge("jobhunter_processed_listings", "Listings processed in the current keyword traversal."),
		totalListings:   gauge("jobhunter_total_listings", "Site-reported result total for the current keyword."),
		notSuitable:     gauge("jobhunter_not_suitable_listings", "Listings in the low suitability bucket."),
		suitable:        gauge("jobhunter_suitable_listings", "Listings in the mid suitability bucket."),
		highlySuitable:  gauge("jobhunter_highly_suitable_listings", "Listings in the high suitability bucket."),
		skippedExisting: gauge("jobhunter_skipped_existing_listings", "Duplicates skipped in the current traversal."),
		deepScanned:     gauge("jobhunter_deep_scanned_listings", "Listings enriched so far in the deep pass."),
		totalDeep:       gauge("jobhunter_total_deep_listings", "Listings queued for the deep pass."),
		keywordIndex:    gauge("jobhunter_keyword_index", "1-based index of the current keyword."),
		totalKeywords:   gauge("jobhunter_total_keywords", "Number of keywords in the run."),
	}
	for _, collector := range []prometheus.Collector{
		s.runInfo,
		s.processed,
		s.totalListings,
		s.notSuitable,
		s.suitable,
		s.highlySuitable,
		s.skippedExisting,
		s.deepScanned,
		s.totalDeep,
		s.keywordIndex,
		s.totalKeywords,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Publish replaces the exported gauges with the snapshot's values.
func (s *PrometheusSink) Publish(snap progress.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runInfo.Reset()
	s.runInfo.WithLabelValues(snap.Site, snap.Phase, snap.Keyword).Set(1)
	s.processed.Set(float64(snap.ProcessedCount))
	s.totalListings.Set(float64(snap.TotalListings))
	s.notSuitable.Set(float64(snap.NotSuitable))
	s.suitable.Set(float64(snap.Suitable))
	s.highlySuitable.Set(float64(snap.HighlySuitable))
	s.skippedExisting.Set(float64(snap.SkippedExisting))
	s.deepScanned.Set(float64(snap.DeepScanned))
	s.totalDeep.Set(float64(snap.TotalDeep))
	s.keywordIndex.Set(float64(snap.KeywordIndex))
	s.totalKeywords.Set(float64(snap.TotalKeywords))
	return nil
}
