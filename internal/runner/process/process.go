// Package process runs judged programs as plain child processes, without
// namespaces or cgroups. When the judge runs as root every program is moved
// to an unprivileged uid/gid (nobody unless configured otherwise). Without
// root the program keeps the judge's uid and can touch anything the judge
// can.
package process

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/cutekitek/rankode-judge/internal/runner"
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

const (
	NobodyUid = 65534
	NobodyGid = 65534
)

type ProcessRunnerConfig struct {
	// Credential to run programs with. nil means nobody when the judge is
	// root and the judge's own uid otherwise. Setting it requires root.
	Credential *syscall.Credential
	Env        []string
	// /proc sampling period of the memory watchdog
	SampleInterval time.Duration
	StackSize      uint64
	// RLIMIT_NPROC of the program's uid, only applied with a credential
	Processes uint64
}

type ProcessRunner struct {
	cfg      ProcessRunnerConfig
	shimPath string
	fs       procfs.FS
}

func NewProcessRunner(cfg ProcessRunnerConfig) (*ProcessRunner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve own executable")
	}
	if len(cfg.Env) == 0 {
		cfg.Env = []string{"PATH=/usr/local/bin:/usr/bin:/bin"}
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 10 * time.Millisecond
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = 256 * 1024 * 1024
	}
	if cfg.Processes == 0 {
		cfg.Processes = 64
	}
	switch {
	case os.Geteuid() == 0 && cfg.Credential == nil:
		cfg.Credential = &syscall.Credential{Uid: NobodyUid, Gid: NobodyGid}
	case os.Geteuid() != 0 && cfg.Credential != nil:
		return nil, errors.New("running programs under another uid requires root")
	case os.Geteuid() != 0:
		slog.Warn("judge is not root: programs run with the judge's uid and can modify test data it can write")
	}
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open /proc")
	}
	return &ProcessRunner{cfg: cfg, shimPath: self, fs: fs}, nil
}

func (r *ProcessRunner) rlimits(req *dto.RunRequest) []rlimit.RLimit {
	cpu := uint64(req.TimeLimit.Seconds()) + 1
	rlims := rlimit.RLimits{
		CPU:         cpu,
		CPUHard:     cpu + 1,
		FileSize:    uint64(req.MaxOutputSize),
		Stack:       r.cfg.StackSize,
		OpenFile:    256,
		DisableCore: true,
	}
	limits := rlims.PrepareRLimit()
	// NPROC counts every process of the uid, the judge's own uid would
	// share it with unrelated processes
	if r.cfg.Credential != nil {
		limits = append(limits, rlimit.RLimit{
			Res:  unix.RLIMIT_NPROC,
			Rlim: syscall.Rlimit{Cur: r.cfg.Processes, Max: r.cfg.Processes},
		})
	}
	return limits
}

func (r *ProcessRunner) Run(ctx context.Context, req *dto.RunRequest) (*dto.ExecutionOutcome, error) {
	if _, err := os.Stat(req.ArtifactPath); err != nil {
		return nil, runner.EnvironmentError(err, "artifact is missing")
	}
	input, output, stderr, err := runner.OpenCaseFiles(req)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	defer output.Close()
	defer stderr.Close()

	// privileges are dropped by the shim, so the shim binary itself need not
	// be reachable by the program's uid
	cmd := exec.Command(r.shimPath, initArg, encodeRLimits(r.rlimits(req)), encodeCredential(r.cfg.Credential), req.ArtifactPath)
	cmd.Stdin = input
	cmd.Stdout = output
	cmd.Stderr = stderr
	cmd.Dir = filepath.Dir(req.ArtifactPath)
	cmd.Env = r.cfg.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, runner.EnvironmentError(err, "failed to start program")
	}
	pid := cmd.Process.Pid

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var watch *memoryWatch
	watch = newMemoryWatch(r.fs, pid, r.shimPath, req.MemoryLimit, r.cfg.SampleInterval, func() {
		watch.kill()
	})
	watch.start()

	timer := time.NewTimer(req.TimeLimit)
	defer timer.Stop()

	timedOut := false
	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		timedOut = true
		watch.kill()
		waitErr = <-waitCh
	case <-ctx.Done():
		watch.kill()
		<-waitCh
		watch.close()
		return nil, errors.Wrap(ctx.Err(), "execution interrupted")
	}
	elapsed := time.Since(start)
	watch.close()
	// descendants may outlive the leader
	watch.kill()

	state := cmd.ProcessState
	if state == nil {
		return nil, runner.EnvironmentError(waitErr, "failed to wait for program")
	}

	outcome := &dto.ExecutionOutcome{
		Status:     dto.ExecutionCompleted,
		ExitStatus: state.ExitCode(),
		Time:       elapsed,
		MemoryKB:   watch.peakKB.Load(),
		OutputPath: req.OutputPath,
	}
	memExceeded := watch.exceeded.Load()
	var usage *syscall.Rusage
	if u, ok := state.SysUsage().(*syscall.Rusage); ok {
		usage = u
		if outcome.MemoryKB == 0 {
			outcome.MemoryKB = u.Maxrss
		}
		// Maxrss also covers reaped descendants that lived between two
		// samples. It includes the shim, so it only decides past the limit.
		if req.MemoryLimit > 0 && u.Maxrss > req.MemoryLimit && !timedOut {
			memExceeded = true
			outcome.MemoryKB = max(outcome.MemoryKB, u.Maxrss)
		}
	}
	r.classify(outcome, req, state, usage, timedOut, memExceeded)

	slog.Debug("execution result", "status", outcome.Status, "exitStatus", outcome.ExitStatus, "memory", outcome.MemoryKB, "time", outcome.Time)
	return outcome, nil
}

func (r *ProcessRunner) classify(outcome *dto.ExecutionOutcome, req *dto.RunRequest, state *os.ProcessState, usage *syscall.Rusage, timedOut, memExceeded bool) {
	switch {
	case memExceeded:
		outcome.Status = dto.ExecutionMemoryLimitExceeded
		return
	case timedOut:
		outcome.Status = dto.ExecutionTimeLimitExceeded
		return
	}

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		if !state.Success() {
			outcome.Status = dto.ExecutionRuntimeError
			outcome.Diagnostic = runner.Diagnostic(runner.ExitReason(state.ExitCode()), req.ErrorPath)
		}
		return
	}

	if ws.Signaled() {
		sig := ws.Signal()
		switch {
		case sig == syscall.SIGXCPU, sig == syscall.SIGKILL && cpuTime(usage) >= req.TimeLimit:
			outcome.Status = dto.ExecutionTimeLimitExceeded
		case sig == syscall.SIGXFSZ:
			outcome.Status = dto.ExecutionRuntimeError
			outcome.Diagnostic = runner.Diagnostic("output limit exceeded", req.ErrorPath)
		default:
			outcome.Status = dto.ExecutionRuntimeError
			outcome.Diagnostic = runner.Diagnostic(runner.SignalReason(sig), req.ErrorPath)
		}
		return
	}

	if ws.ExitStatus() != 0 {
		outcome.Status = dto.ExecutionRuntimeError
		outcome.Diagnostic = runner.Diagnostic(runner.ExitReason(ws.ExitStatus()), req.ErrorPath)
	}
}

func cpuTime(usage *syscall.Rusage) time.Duration {
	if usage == nil {
		return 0
	}
	return time.Duration(usage.Utime.Nano() + usage.Stime.Nano())
}

func killGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}
