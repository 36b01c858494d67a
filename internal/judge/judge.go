// Package judge drives one submission through compilation, execution and
// comparison, emitting a CaseResult per stage in case order.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cutekitek/rankode-judge/internal/checker"
	"github.com/cutekitek/rankode-judge/internal/compiler"
	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/cutekitek/rankode-judge/internal/reporter"
	"github.com/cutekitek/rankode-judge/internal/runner"
	"github.com/cutekitek/rankode-judge/internal/toolchain"
	"github.com/cutekitek/rankode-judge/internal/workspace"
	"github.com/pkg/errors"
)

const reportTimeout = 5 * time.Second

type Config struct {
	// bytes, 0 means unlimited
	MaxOutputSize int64
	KeepWorkspace bool
}

type Judge struct {
	compiler   *compiler.Compiler
	executor   runner.Executor
	checker    *checker.Checker
	reporter   reporter.Reporter
	workspaces *workspace.Manager
	cfg        Config
	log        *slog.Logger
}

func NewJudge(
	c *compiler.Compiler,
	executor runner.Executor,
	ch *checker.Checker,
	rep reporter.Reporter,
	workspaces *workspace.Manager,
	cfg Config,
	logger *slog.Logger,
) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{
		compiler:   c,
		executor:   executor,
		checker:    ch,
		reporter:   rep,
		workspaces: workspaces,
		cfg:        cfg,
		log:        logger,
	}
}

// Run judges sub. Verdicts (including CompileError) are delivered through
// the reporter and yield a nil error. A non-nil error means the judging
// environment failed; a SystemError result has been reported for the case
// in progress before it is returned.
func (j *Judge) Run(ctx context.Context, sub *models.Submission) error {
	log := j.log.With("submission", sub.Id)

	ws, err := j.workspaces.Create(sub.Id)
	if err != nil {
		j.report(ctx, log, sub.Id, models.CaseResult{Case: models.CompileCase, Verdict: models.SystemError("workspace unavailable")})
		return errors.Wrap(err, "failed to create workspace")
	}
	defer func() {
		if j.cfg.KeepWorkspace {
			log.Debug("workspace kept", "dir", ws.Dir())
			return
		}
		if err := ws.Remove(); err != nil {
			log.Warn("failed to remove workspace", "dir", ws.Dir(), "error", err)
		}
	}()

	artifact, err := j.compiler.Compile(ctx, sub.Language, sub.SourcePath, ws)
	if err != nil {
		return j.compileFailed(ctx, log, sub.Id, err)
	}
	log.Debug("compiled", "artifact", artifact.Path)

	for i, tc := range sub.TestCases {
		caseNum := i + 1
		res, err := j.runCase(ctx, ws, artifact, sub, caseNum, tc)
		if err != nil {
			j.report(ctx, log, sub.Id, models.CaseResult{Case: caseNum, Verdict: models.SystemError(err.Error())})
			return errors.Wrapf(err, "case %d", caseNum)
		}
		j.report(ctx, log, sub.Id, *res)
	}
	return nil
}

func (j *Judge) compileFailed(ctx context.Context, log *slog.Logger, submissionId string, err error) error {
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &compileErr):
		j.report(ctx, log, submissionId, models.CaseResult{Case: models.CompileCase, Verdict: models.CompileError(compileErr.Diagnostics)})
		return nil
	case errors.Is(err, toolchain.ErrUnsupportedLanguage):
		j.report(ctx, log, submissionId, models.CaseResult{Case: models.CompileCase, Verdict: models.CompileError(err.Error())})
		return err
	default:
		j.report(ctx, log, submissionId, models.CaseResult{Case: models.CompileCase, Verdict: models.SystemError(err.Error())})
		return errors.Wrap(err, "compilation")
	}
}

func (j *Judge) runCase(ctx context.Context, ws *workspace.Workspace, artifact *dto.CompiledArtifact, sub *models.Submission, caseNum int, tc models.TestCase) (*models.CaseResult, error) {
	req := &dto.RunRequest{
		ArtifactPath:  artifact.Path,
		InputPath:     tc.InputPath,
		OutputPath:    ws.CaseOutputPath(caseNum),
		ErrorPath:     ws.CaseErrorPath(caseNum),
		TimeLimit:     time.Duration(sub.TimeLimit) * time.Millisecond,
		MemoryLimit:   sub.MemoryLimit,
		MaxOutputSize: j.cfg.MaxOutputSize,
	}
	outcome, err := j.executor.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		os.Remove(req.OutputPath)
		os.Remove(req.ErrorPath)
	}()

	verdict, err := j.verdict(outcome, tc)
	if err != nil {
		return nil, err
	}
	return &models.CaseResult{
		Case:     caseNum,
		Verdict:  verdict,
		Time:     outcome.Time,
		MemoryKB: outcome.MemoryKB,
	}, nil
}

func (j *Judge) verdict(outcome *dto.ExecutionOutcome, tc models.TestCase) (models.Verdict, error) {
	switch outcome.Status {
	case dto.ExecutionTimeLimitExceeded:
		return models.TimeLimitExceeded(), nil
	case dto.ExecutionMemoryLimitExceeded:
		return models.MemoryLimitExceeded(), nil
	case dto.ExecutionRuntimeError:
		return models.RuntimeError(outcome.Diagnostic), nil
	case dto.ExecutionCompleted:
	default:
		return models.Verdict{}, fmt.Errorf("unknown execution status %v", outcome.Status)
	}

	res, err := j.checker.Compare(outcome.OutputPath, tc.ExpectedPath)
	if errors.Is(err, checker.ErrFileFormat) {
		return models.RuntimeError("output format error: " + err.Error()), nil
	}
	if err != nil {
		return models.Verdict{}, errors.Wrap(err, "comparison")
	}
	if !res.Match {
		return models.WrongAnswer(res.Message), nil
	}
	return models.Accepted(), nil
}

// report delivers res and only logs a failed delivery. An interrupted
// submission still gets its terminal result out.
func (j *Judge) report(ctx context.Context, log *slog.Logger, submissionId string, res models.CaseResult) {
	log.Debug("case judged", "case", res.Case, "verdict", res.Verdict.Kind.String(), "time", res.Time.Milliseconds(), "memory", res.MemoryKB)
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()
	}
	if err := j.reporter.Report(ctx, submissionId, res); err != nil {
		log.Error("failed to report result", "case", res.Case, "error", err)
	}
}
