// Package isolate runs judged programs through the isolate sandbox
// (https://github.com/ioi/isolate), one box per execution.
package isolate

import (
	"context"
	"os/exec"
	"syscall"

	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/cutekitek/rankode-judge/internal/runner"
	"github.com/cutekitek/rankode-judge/pkg/files"
	"github.com/pkg/errors"
)

const (
	IsolatedExecPath = "isolate"

	programName = "program"
	inputName   = "input"
	outputName  = "output"
	errorName   = "error"
)

type IsolateRunnerConfig struct {
	MaxBoxCount int
	Processes   int
}

type isolateRunner struct {
	Config         IsolateRunnerConfig
	availableBoxes chan int
}

func NewIsolateRunner(cfg IsolateRunnerConfig) runner.Executor {
	if cfg.MaxBoxCount <= 0 {
		cfg.MaxBoxCount = 1
	}
	if cfg.Processes <= 0 {
		cfg.Processes = 1
	}
	boxes := make(chan int, cfg.MaxBoxCount)
	for i := 0; i < cfg.MaxBoxCount; i++ {
		boxes <- i
	}
	return &isolateRunner{
		Config:         cfg,
		availableBoxes: boxes,
	}
}

func (i *isolateRunner) Run(ctx context.Context, req *dto.RunRequest) (*dto.ExecutionOutcome, error) {
	var boxId int
	select {
	case boxId = <-i.availableBoxes:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for box")
	}
	defer func() {
		i.availableBoxes <- boxId
	}()

	box, err := NewIsolatedBox(ctx, boxId)
	if err != nil {
		return nil, runner.EnvironmentError(err, "failed to init box")
	}
	defer box.Clean()

	if err := files.CopyFile(req.ArtifactPath, box.Path(programName)); err != nil {
		return nil, runner.EnvironmentError(err, "failed to copy artifact")
	}
	if err := files.CopyFile(req.InputPath, box.Path(inputName)); err != nil {
		return nil, runner.EnvironmentError(err, "failed to copy input")
	}

	cmd, err := box.Run(ctx, runParams{
		Timeout:     req.TimeLimit,
		MemoryLimit: req.MemoryLimit,
		MaxFileSize: req.MaxOutputSize / 1024,
		Processes:   i.Config.Processes,
		Stdin:       inputName,
		Stdout:      outputName,
		Stderr:      errorName,
	}, "./"+programName)
	if err != nil {
		return nil, runner.EnvironmentError(err, "failed to prepare run")
	}
	defer cmd.Meta.Remove()

	// isolate exits with 1 when the program failed, the meta file tells why
	runErr := cmd.Cmd.Run()
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "execution interrupted")
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, runner.EnvironmentError(runErr, "failed to run isolate")
	}

	meta, err := cmd.Meta.Collect()
	if err != nil {
		return nil, runner.EnvironmentError(err, "failed to read meta")
	}
	if meta.Status == exitStatusInternal {
		code := 0
		if exitErr != nil {
			code = exitErr.ExitCode()
		}
		return nil, runner.EnvironmentError(&boxFailedError{ErrorLogs: meta.Message, StatusCode: code}, "isolate")
	}

	if err := files.CopyFile(box.Path(outputName), req.OutputPath); err != nil {
		return nil, runner.EnvironmentError(err, "failed to copy output")
	}
	if req.ErrorPath != "" {
		if err := files.CopyFile(box.Path(errorName), req.ErrorPath); err != nil {
			return nil, runner.EnvironmentError(err, "failed to copy stderr")
		}
	}
	return metaToOutcome(meta, req), nil
}

func metaToOutcome(meta *metaData, req *dto.RunRequest) *dto.ExecutionOutcome {
	outcome := &dto.ExecutionOutcome{
		Status:     dto.ExecutionCompleted,
		ExitStatus: meta.ExitCode,
		Time:       meta.WallTime,
		MemoryKB:   meta.Memory,
		OutputPath: req.OutputPath,
	}
	switch meta.Status {
	case exitStatusTimeout:
		outcome.Status = dto.ExecutionTimeLimitExceeded
	case exitStatusOutOfMemory:
		outcome.Status = dto.ExecutionMemoryLimitExceeded
	case exitStatusSignal:
		sig := syscall.Signal(meta.ExitSignal)
		outcome.Status = dto.ExecutionRuntimeError
		if sig == syscall.SIGXFSZ {
			outcome.Diagnostic = runner.Diagnostic("output limit exceeded", req.ErrorPath)
		} else {
			outcome.Diagnostic = runner.Diagnostic(runner.SignalReason(sig), req.ErrorPath)
		}
	case exitStatusRuntimeError:
		outcome.Status = dto.ExecutionRuntimeError
		outcome.Diagnostic = runner.Diagnostic(runner.ExitReason(meta.ExitCode), req.ErrorPath)
	}
	return outcome
}
