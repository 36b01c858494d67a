// Package sandbox runs judged programs inside go-sandbox containers: fresh
// user, pid, mount, network and ipc namespaces per container and a cgroup
// per execution. It requires root.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/criyle/go-sandbox/runner"
	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	executor "github.com/cutekitek/rankode-judge/internal/runner"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	containerWorkDir = "/w"
	programPath      = "/w/program"
)

func init() {
	container.Init()
}

type SandboxRunnerConfig struct {
	ContainersPoolSize int
	CgroupPrefix       string
	StackSize          uint64
}

type sandboxContainerEnv struct {
	container.Environment
	WorkDir string
}

type SandboxRunner struct {
	Config     SandboxRunnerConfig
	containers chan *sandboxContainerEnv
	prepared   int
	rootCG     cgroup.Cgroup
}

type containerRunner struct {
	container.Environment
	container.ExecveParam
}

func (r *containerRunner) Run(c context.Context) runner.Result {
	return r.Execve(c, r.ExecveParam)
}

func NewSandboxRunner(cfg SandboxRunnerConfig) *SandboxRunner {
	if cfg.ContainersPoolSize <= 0 {
		cfg.ContainersPoolSize = 1
	}
	if cfg.CgroupPrefix == "" {
		cfg.CgroupPrefix = "rankode"
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = 256 * 1024 * 1024
	}
	return &SandboxRunner{
		Config:     cfg,
		containers: make(chan *sandboxContainerEnv, cfg.ContainersPoolSize),
	}
}

func (r *SandboxRunner) Init() error {
	if cgroup.DetectType() == cgroup.TypeV2 {
		cgroup.EnableV2Nesting()
	}
	ct, err := cgroup.GetAvailableController()
	if err != nil {
		return errors.Wrap(err, "no cgroup controllers available")
	}
	r.rootCG, err = cgroup.New(r.Config.CgroupPrefix, ct)
	if err != nil {
		return errors.Wrap(err, "failed to create root cgroup")
	}
	return r.prepareContainers()
}

func (r *SandboxRunner) Close() {
	for closed := 0; closed < r.prepared; closed++ {
		c := <-r.containers
		c.Destroy()
		os.RemoveAll(c.WorkDir)
	}
	if r.rootCG != nil {
		r.rootCG.Destroy()
	}
}

func (r *SandboxRunner) Run(ctx context.Context, req *dto.RunRequest) (*dto.ExecutionOutcome, error) {
	input, output, stderr, err := executor.OpenCaseFiles(req)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	defer output.Close()
	defer stderr.Close()

	var c *sandboxContainerEnv
	select {
	case c = <-r.containers:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for container")
	}
	defer func() {
		r.containers <- c
	}()

	if err := c.Reset(); err != nil {
		return nil, executor.EnvironmentError(err, "failed to reset container")
	}
	if err := c.Ping(); err != nil {
		return nil, executor.EnvironmentError(err, "failed to ping container")
	}
	if err := r.copyArtifact(c, req.ArtifactPath); err != nil {
		return nil, executor.EnvironmentError(err, "failed to copy artifact")
	}

	res, err := r.ExecuteInSandbox(ctx, RunParams{
		ContainerEnv: c,
		Args:         []string{programPath},
		Timeout:      req.TimeLimit,
		MemoryLimit:  req.MemoryLimit * 1024,
		MaxFileSize:  req.MaxOutputSize,
		Files:        []uintptr{input.Fd(), output.Fd(), stderr.Fd()},
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "execution interrupted")
	}
	return mapResult(res, req), nil
}

func (r *SandboxRunner) copyArtifact(env container.Environment, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	files, err := env.Open([]container.OpenCmd{
		{Path: programPath, Flag: os.O_WRONLY | os.O_CREATE | os.O_TRUNC, Perm: 0755},
	})
	if err != nil {
		return fmt.Errorf("failed to open files in container: %w", err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	if _, err := io.Copy(files[0], src); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	return nil
}

type RunParams struct {
	ContainerEnv container.Environment
	Args         []string
	MaxFileSize  int64
	Timeout      time.Duration
	// bytes
	MemoryLimit int64
	// stdin, stdout, stderr
	Files []uintptr
}

type executionResult struct {
	Status     runner.Status
	ExitStatus int
	Elapsed    time.Duration
	// bytes
	Memory   uint64
	TimedOut bool
}

func (r *SandboxRunner) ExecuteInSandbox(ctx context.Context, params RunParams) (*executionResult, error) {
	cg, err := r.rootCG.Random("sandbox")
	if err != nil {
		return nil, executor.EnvironmentError(err, "cgroup.Random")
	}
	defer cg.Destroy()

	if params.MemoryLimit > 0 {
		if err := cg.SetMemoryLimit(uint64(params.MemoryLimit)); err != nil {
			return nil, executor.EnvironmentError(err, "failed to set memory limit")
		}
	}

	cgDir, err := cg.Open()
	if err != nil {
		return nil, executor.EnvironmentError(err, "failed to open cg fd")
	}
	defer cgDir.Close()

	execCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	cpu := uint64(params.Timeout.Seconds()) + 1
	rlims := rlimit.RLimits{
		CPU:         cpu,
		CPUHard:     cpu + 1,
		FileSize:    uint64(params.MaxFileSize),
		Stack:       r.Config.StackSize,
		OpenFile:    256,
		DisableCore: true,
	}

	rs := containerRunner{
		Environment: params.ContainerEnv,
		ExecveParam: container.ExecveParam{
			Args:    params.Args,
			Env:     []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
			Files:   params.Files,
			RLimits: rlims.PrepareRLimit(),
			SyncFunc: func(pid int) error {
				return cg.AddProc(pid)
			},
			CgroupFD: cgDir.Fd(),
		},
	}

	start := time.Now()
	res := rs.Run(execCtx)
	elapsed := time.Since(start)

	execRes := &executionResult{
		Status:     res.Status,
		ExitStatus: res.ExitStatus,
		Elapsed:    elapsed,
		Memory:     uint64(res.Memory),
		TimedOut:   execCtx.Err() == context.DeadlineExceeded,
	}
	if mem, err := cg.MemoryMaxUsage(); err == nil {
		execRes.Memory = mem
	}
	if res.Status == runner.StatusRunnerError {
		return nil, executor.EnvironmentError(fmt.Errorf("%v", res.Error), "sandbox runner error")
	}

	slog.Debug("execution result", "status", execRes.Status, "exitStatus", execRes.ExitStatus, "memory", execRes.Memory, "error", res.Error, "time", execRes.Elapsed)
	return execRes, nil
}

func mapResult(res *executionResult, req *dto.RunRequest) *dto.ExecutionOutcome {
	outcome := &dto.ExecutionOutcome{
		Status:     dto.ExecutionCompleted,
		ExitStatus: res.ExitStatus,
		Time:       res.Elapsed,
		MemoryKB:   int64(res.Memory / 1024),
		OutputPath: req.OutputPath,
	}
	// the cgroup OOM killer sends SIGKILL, usage then sits at the ceiling
	oom := req.MemoryLimit > 0 && outcome.MemoryKB >= req.MemoryLimit

	switch {
	case res.TimedOut, res.Status == runner.StatusTimeLimitExceeded:
		outcome.Status = dto.ExecutionTimeLimitExceeded
	case res.Status == runner.StatusMemoryLimitExceeded, oom && res.Status != runner.StatusNormal:
		outcome.Status = dto.ExecutionMemoryLimitExceeded
	case res.Status == runner.StatusOutputLimitExceeded:
		outcome.Status = dto.ExecutionRuntimeError
		outcome.Diagnostic = executor.Diagnostic("output limit exceeded", req.ErrorPath)
	case res.Status == runner.StatusSignalled:
		sig := syscall.Signal(res.ExitStatus)
		switch sig {
		case syscall.SIGXCPU:
			outcome.Status = dto.ExecutionTimeLimitExceeded
		case syscall.SIGXFSZ:
			outcome.Status = dto.ExecutionRuntimeError
			outcome.Diagnostic = executor.Diagnostic("output limit exceeded", req.ErrorPath)
		default:
			outcome.Status = dto.ExecutionRuntimeError
			outcome.Diagnostic = executor.Diagnostic(executor.SignalReason(sig), req.ErrorPath)
		}
	case res.Status == runner.StatusNonzeroExitStatus, res.Status == runner.StatusNormal && res.ExitStatus != 0:
		outcome.Status = dto.ExecutionRuntimeError
		outcome.Diagnostic = executor.Diagnostic(executor.ExitReason(res.ExitStatus), req.ErrorPath)
	case res.Status != runner.StatusNormal:
		outcome.Status = dto.ExecutionRuntimeError
		outcome.Diagnostic = executor.Diagnostic(res.Status.String(), req.ErrorPath)
	}
	return outcome
}

func (r *SandboxRunner) PrepareContainer(workdir string) (container.Environment, error) {
	mb := mount.NewBuilder().
		WithBind("/bin", "bin", true).
		WithBind("/lib", "lib", true).
		WithBind("/lib64", "lib64", true).
		WithBind("/usr", "usr", true).
		WithBind("/etc/ld.so.cache", "etc/ld.so.cache", true).
		WithProc().
		WithBind("/dev/null", "dev/null", false).
		WithTmpfs("tmp", "size=128m,nr_inodes=4k").
		WithTmpfs("w", "size=64m,nr_inodes=4k").
		FilterNotExist()

	cloneFlag := unix.CLONE_NEWIPC | unix.CLONE_NEWNET | unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWUSER | unix.CLONE_NEWUTS

	b := container.Builder{
		Root:          workdir,
		WorkDir:       containerWorkDir,
		Mounts:        mb.Mounts,
		Stderr:        os.Stderr,
		CredGenerator: newCredGen(),
		CloneFlags:    uintptr(cloneFlag),
	}
	return b.Build()
}

func (r *SandboxRunner) prepareContainers() error {
	for i := 0; i < r.Config.ContainersPoolSize; i++ {
		workDir, err := os.MkdirTemp("", "rankode-container-")
		if err != nil {
			return errors.Wrap(err, "failed to create temp dir")
		}
		c, err := r.PrepareContainer(filepath.Clean(workDir))
		if err != nil {
			return errors.Wrap(err, "failed to create container")
		}
		r.containers <- &sandboxContainerEnv{
			Environment: c,
			WorkDir:     workDir,
		}
		r.prepared++
	}
	return nil
}

type credGen struct {
	cur uint32
}

func newCredGen() *credGen {
	return &credGen{cur: 10000}
}

func (c *credGen) Get() syscall.Credential {
	n := atomic.AddUint32(&c.cur, 1)
	return syscall.Credential{
		Uid: n,
		Gid: n,
	}
}
