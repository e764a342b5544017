package sinks

import (
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/progress"
)

// LogSink publishes snapshots as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(s progress.Snapshot) error {
	l.logger.Info("progress",
		zap.String("site", s.Site),
		zap.String("phase", s.Phase),
		zap.String("keyword", s.Keyword),
		zap.Int("keyword_index", s.KeywordIndex),
		zap.Int("total_keywords", s.TotalKeywords),
		zap.Int("processed", s.ProcessedCount),
		zap.Int("total_listings", s.TotalListings),
		zap.Int("not_suitable", s.NotSuitable),
		zap.Int("suitable", s.Suitable),
		zap.Int("highly_suitable", s.HighlySuitable),
		zap.Int("skipped_existing", s.SkippedExisting),
		zap.Int("deep_scanned", s.DeepScanned),
		zap.Int("total_deep", s.TotalDeep),
	)
	return nil
}
