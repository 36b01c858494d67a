package main

import (
	"context"

	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/cutekitek/rankode-judge/internal/reporter"
)

type forwardReporter struct {
	target reporter.Reporter
}

func (f *forwardReporter) Report(ctx context.Context, submissionId string, res models.CaseResult) error {
	return f.target.Report(ctx, submissionId, res)
}
