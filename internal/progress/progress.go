// Package progress defines the run progress snapshot and the sinks it is
// published to. The snapshot's JSON shape is a dashboard contract; field
// names must not change.
package progress

// Run phases as reported to dashboards.
const (
	PhaseDiscovery = "PASS 1"
	PhaseDeepScan  = "PASS 2"
)

// Snapshot is the full progress state at one checkpoint. Each publish
// carries the complete state, so a consumer only ever needs the latest one.
type Snapshot struct {
	Site            string `json:"site"`
	Phase           string `json:"phase"`
	Keyword         string `json:"keyword"`
	KeywordIndex    int    `json:"keyword_index"`
	TotalKeywords   int    `json:"total_keywords"`
	ProcessedCount  int    `json:"processed_count"`
	TotalListings   int    `json:"total_listings"`
	NotSuitable     int    `json:"not_suitable"`
	Suitable        int    `json:"suitable"`
	HighlySuitable  int    `json:"highly_suitable"`
	SkippedExisting int    `json:"skipped_existing"`
	DeepScanned     int    `json:"deep_scanned"`
	TotalDeep       int    `json:"total_deep"`
}

// Sink receives progress snapshots. Publishing is best effort; a sink error
// never interrupts the run.
type Sink interface {
	Publish(s Snapshot) error
}

// MultiSink fans one snapshot out to several sinks. Errors are collected by
// the caller's logger inside each sink, so Publish here only reports the
// first failure.
type MultiSink []Sink

// Publish sends the snapshot to every sink, returning the first error seen.
func (m MultiSink) Publish(s Snapshot) error {
	var first error
	for _, sink := range m {
		if err := sink.Publish(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
