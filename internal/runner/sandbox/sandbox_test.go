package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/runner"
	"github.com/cutekitek/rankode-judge/internal/repository/dto"
)

func TestMapResult(t *testing.T) {
	req := &dto.RunRequest{OutputPath: "/tmp/out", MemoryLimit: 64 * 1024}
	tests := []struct {
		name     string
		res      executionResult
		expected dto.ExecutionStatus
		diag     string
	}{
		{"normal", executionResult{Status: runner.StatusNormal}, dto.ExecutionCompleted, ""},
		{"deadline", executionResult{Status: runner.StatusSignalled, ExitStatus: int(syscall.SIGKILL), TimedOut: true}, dto.ExecutionTimeLimitExceeded, ""},
		{"tle status", executionResult{Status: runner.StatusTimeLimitExceeded}, dto.ExecutionTimeLimitExceeded, ""},
		{"cpu rlimit", executionResult{Status: runner.StatusSignalled, ExitStatus: int(syscall.SIGXCPU)}, dto.ExecutionTimeLimitExceeded, ""},
		{"oom kill", executionResult{Status: runner.StatusSignalled, ExitStatus: int(syscall.SIGKILL), Memory: 64 * 1024 * 1024}, dto.ExecutionMemoryLimitExceeded, ""},
		{"mle status", executionResult{Status: runner.StatusMemoryLimitExceeded}, dto.ExecutionMemoryLimitExceeded, ""},
		{"segfault", executionResult{Status: runner.StatusSignalled, ExitStatus: int(syscall.SIGSEGV), Memory: 1024 * 1024}, dto.ExecutionRuntimeError, "SIGSEGV"},
		{"output", executionResult{Status: runner.StatusSignalled, ExitStatus: int(syscall.SIGXFSZ)}, dto.ExecutionRuntimeError, "output limit exceeded"},
		{"exit code", executionResult{Status: runner.StatusNonzeroExitStatus, ExitStatus: 2}, dto.ExecutionRuntimeError, "exit status 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mapResult(&tt.res, req)
			if out.Status != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, out.Status)
			}
			if !strings.Contains(out.Diagnostic, tt.diag) {
				t.Fatalf("diagnostic %q does not contain %q", out.Diagnostic, tt.diag)
			}
			if out.OutputPath != req.OutputPath {
				t.Fatalf("unexpected output path %s", out.OutputPath)
			}
		})
	}
}

func TestSandboxRunner_Run(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("sandbox tests require root privileges")
	}
	sb := NewSandboxRunner(SandboxRunnerConfig{ContainersPoolSize: 1})
	if err := sb.Init(); err != nil {
		t.Skipf("sandbox is unavailable: %v", err)
	}
	defer sb.Close()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "program")
	if err := os.WriteFile(artifact, []byte("#!/bin/sh\nread n\necho $((n * 2))\n"), 0755); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, []byte("5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	req := &dto.RunRequest{
		ArtifactPath:  artifact,
		InputPath:     input,
		OutputPath:    filepath.Join(dir, "out"),
		ErrorPath:     filepath.Join(dir, "err"),
		TimeLimit:     5 * time.Second,
		MemoryLimit:   256 * 1024,
		MaxOutputSize: 1024 * 1024,
	}
	res, err := sb.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != dto.ExecutionCompleted {
		t.Fatalf("unexpected outcome: %+v", res)
	}
	out, err := os.ReadFile(req.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "10\n" {
		t.Fatalf("expected %q, got %q", "10\n", out)
	}

	if err := os.WriteFile(artifact, []byte("#!/bin/sh\nwhile :; do :; done\n"), 0755); err != nil {
		t.Fatal(err)
	}
	req.TimeLimit = time.Second
	res, err = sb.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != dto.ExecutionTimeLimitExceeded {
		t.Fatalf("expected time limit exceeded, got %+v", res)
	}
}
