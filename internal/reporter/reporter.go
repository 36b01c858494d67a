// Package reporter delivers case results to whoever waits for them.
package reporter

import (
	"context"
	"log/slog"

	"github.com/cutekitek/rankode-judge/internal/mappers"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
)

// Reporter accepts one CaseResult at a time. Report returns only after the
// result has been delivered, so callers observe a strict order.
type Reporter interface {
	Report(ctx context.Context, submissionId string, res models.CaseResult) error
}

type LogReporter struct {
	log *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{log: logger}
}

func (r *LogReporter) Report(ctx context.Context, submissionId string, res models.CaseResult) error {
	r.log.InfoContext(ctx, "case result",
		"submission", submissionId,
		"case", res.Case,
		"verdict", mappers.VerdictToWire(res.Verdict),
		"time", res.Time.Milliseconds(),
		"memory", res.MemoryKB,
	)
	return nil
}
