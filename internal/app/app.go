// Package app wires configuration into a ready judge for the entry points.
package app

import (
	"log/slog"
	"syscall"

	"github.com/cutekitek/rankode-judge/internal/checker"
	"github.com/cutekitek/rankode-judge/internal/compiler"
	"github.com/cutekitek/rankode-judge/internal/config"
	"github.com/cutekitek/rankode-judge/internal/judge"
	"github.com/cutekitek/rankode-judge/internal/reporter"
	"github.com/cutekitek/rankode-judge/internal/runner"
	"github.com/cutekitek/rankode-judge/internal/runner/isolate"
	"github.com/cutekitek/rankode-judge/internal/runner/process"
	"github.com/cutekitek/rankode-judge/internal/runner/sandbox"
	"github.com/cutekitek/rankode-judge/internal/toolchain"
	"github.com/cutekitek/rankode-judge/internal/workspace"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// NewExecutor builds the backend named by RUNNER_BACKEND. The returned
// function releases it.
func NewExecutor(cfg *config.Config) (runner.Executor, func(), error) {
	switch cfg.RunnerBackend {
	case "sandbox":
		r := sandbox.NewSandboxRunner(sandbox.SandboxRunnerConfig{
			ContainersPoolSize: cfg.SandboxPoolSize,
		})
		if err := r.Init(); err != nil {
			return nil, nil, errors.Wrap(err, "failed to init sandbox")
		}
		return r, r.Close, nil
	case "isolate":
		return isolate.NewIsolateRunner(isolate.IsolateRunnerConfig{MaxBoxCount: cfg.IsolateBoxes}), func() {}, nil
	default:
		pcfg := process.ProcessRunnerConfig{}
		if cfg.RunUid >= 0 && cfg.RunGid >= 0 {
			pcfg.Credential = &syscall.Credential{Uid: uint32(cfg.RunUid), Gid: uint32(cfg.RunGid)}
		}
		r, err := process.NewProcessRunner(pcfg)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil
	}
}

func NewRegistry(cfg *config.Config) (*toolchain.Registry, error) {
	if cfg.ToolchainsPath == "" {
		return toolchain.NewDefaultRegistry(), nil
	}
	return toolchain.LoadDir(cfg.ToolchainsPath)
}

// NewReporter builds the reporter named by REPORTER. rabbitmq publishers
// are owned by the queue handler and are not built here.
func NewReporter(cfg *config.Config) (reporter.Reporter, func(), error) {
	switch cfg.Reporter {
	case "http":
		return reporter.NewHTTPReporter(cfg.ResultURL, nil), func() {}, nil
	case "redis":
		r := reporter.NewRedisReporter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.RedisStream)
		return r, func() { r.Close() }, nil
	case "log":
		return reporter.NewLogReporter(nil), func() {}, nil
	}
	return nil, nil, errors.Errorf("reporter %q is not available here", cfg.Reporter)
}

func NewJudge(cfg *config.Config, executor runner.Executor, rep reporter.Reporter) (*judge.Judge, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return judge.NewJudge(
		compiler.NewCompiler(registry, compiler.Config{Timeout: cfg.CompileTimeout()}, nil),
		executor,
		checker.NewChecker(checker.Options{
			AllowTrailingLines: cfg.CheckerAllowTrailingLines,
			RejectShortLines:   cfg.CheckerRejectShortLines,
		}),
		rep,
		workspace.NewManager(cfg.WorkDir),
		judge.Config{MaxOutputSize: cfg.MaxOutputSize, KeepWorkspace: cfg.KeepWorkspace},
		slog.Default(),
	), nil
}
