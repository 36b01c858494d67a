package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/cutekitek/rankode-judge/internal/toolchain"
	"github.com/cutekitek/rankode-judge/pkg/shell"
	"github.com/pkg/errors"
)

var ErrToolchainUnavailable = errors.New("toolchain unavailable")

// CompileError carries the compiler's stderr verbatim.
type CompileError struct {
	Diagnostics string
	ExitCode    int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compilation failed(%d)", e.ExitCode)
}

// Scratch names the files a compilation writes.
type Scratch interface {
	ArtifactPath() string
	DiagnosticsPath() string
}

type Config struct {
	// 0 disables the compile timeout
	Timeout time.Duration
}

type Compiler struct {
	registry *toolchain.Registry
	cfg      Config
	log      *slog.Logger
}

func NewCompiler(registry *toolchain.Registry, cfg Config, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{registry: registry, cfg: cfg, log: logger}
}

// Compile builds sourcePath into scratch.ArtifactPath(). A rejected source
// yields *CompileError; anything wrapping ErrToolchainUnavailable or another
// error is an environment failure.
func (c *Compiler) Compile(ctx context.Context, language, sourcePath string, scratch Scratch) (*dto.CompiledArtifact, error) {
	tc, err := c.registry.Lookup(language)
	if err != nil {
		return nil, err
	}
	args, err := tc.Args(sourcePath, scratch.ArtifactPath())
	if err != nil {
		return nil, err
	}

	compileCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		compileCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	c.log.Debug("compiling", "language", language, "compiler", tc.Compiler, "args", args)
	cmd := shell.NewCommand(compileCtx, tc.Compiler, args...)
	runErr := cmd.RunWithStderrFile(scratch.DiagnosticsPath())
	if runErr != nil {
		var startErr *shell.StartError
		if errors.As(runErr, &startErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolchainUnavailable, tc.Compiler, startErr.Err)
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "compilation interrupted")
		}
		timedOut := compileCtx.Err() == context.DeadlineExceeded
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return nil, errors.Wrap(runErr, "compiler failed")
		}
		diagnostics, err := os.ReadFile(scratch.DiagnosticsPath())
		if err != nil {
			return nil, errors.Wrap(err, "failed to read compiler diagnostics")
		}
		if timedOut {
			diagnostics = append(diagnostics, fmt.Sprintf("compilation timed out after %s\n", c.cfg.Timeout)...)
		}
		return nil, &CompileError{Diagnostics: string(diagnostics), ExitCode: exitCode}
	}

	if _, err := os.Stat(scratch.ArtifactPath()); err != nil {
		return nil, errors.Wrap(err, "compiler did not produce an artifact")
	}
	// judged programs may run under another uid
	if err := os.Chmod(scratch.ArtifactPath(), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to chmod artifact")
	}
	return &dto.CompiledArtifact{Path: scratch.ArtifactPath(), Language: language}, nil
}
