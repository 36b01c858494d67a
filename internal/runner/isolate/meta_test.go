package isolate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cutekitek/rankode-judge/internal/repository/dto"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name   string
		meta   string
		status exitStatus
		memory int64
		wall   time.Duration
	}{
		{
			name:   "ok",
			meta:   "time:0.012\ntime-wall:0.034\nmax-rss:1480\ncg-mem:1200\nexitcode:0\n",
			status: exitStatusOk,
			memory: 1200,
			wall:   34 * time.Millisecond,
		},
		{
			name:   "timeout",
			meta:   "status:TO\nmessage:Time limit exceeded (wall clock)\ntime:0.990\ntime-wall:1.000\nmax-rss:900\nkilled:1\n",
			status: exitStatusTimeout,
			memory: 900,
			wall:   time.Second,
		},
		{
			name:   "oom",
			meta:   "status:SG\nexitsig:9\ncg-oom-killed:1\ncg-mem:65536\ntime-wall:0.200\n",
			status: exitStatusOutOfMemory,
			memory: 65536,
			wall:   200 * time.Millisecond,
		},
		{
			name:   "runtime error",
			meta:   "status:RE\nexitcode:3\nmessage:Exited with error status 3\ntime-wall:0.010\n",
			status: exitStatusRuntimeError,
			wall:   10 * time.Millisecond,
		},
		{
			name:   "internal",
			meta:   "status:XX\nmessage:Cannot run proxy\n",
			status: exitStatusInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := parseMeta(strings.NewReader(tt.meta))
			if err != nil {
				t.Fatalf("parseMeta failed: %v", err)
			}
			if meta.Status != tt.status {
				t.Fatalf("expected status %v, got %v", tt.status, meta.Status)
			}
			if meta.Memory != tt.memory {
				t.Fatalf("expected memory %d, got %d", tt.memory, meta.Memory)
			}
			if meta.WallTime != tt.wall {
				t.Fatalf("expected wall time %s, got %s", tt.wall, meta.WallTime)
			}
		})
	}
}

func TestParseMeta_Invalid(t *testing.T) {
	for _, meta := range []string{"garbage\n", "time:abc\n", "exitcode:x\n"} {
		if _, err := parseMeta(strings.NewReader(meta)); !errors.Is(err, ErrInvalidMeta) {
			t.Fatalf("%q: expected ErrInvalidMeta, got %v", meta, err)
		}
	}
}

func TestMetaToOutcome(t *testing.T) {
	req := &dto.RunRequest{OutputPath: "/tmp/out"}
	tests := []struct {
		meta     metaData
		expected dto.ExecutionStatus
		diag     string
	}{
		{metaData{Status: exitStatusOk}, dto.ExecutionCompleted, ""},
		{metaData{Status: exitStatusTimeout}, dto.ExecutionTimeLimitExceeded, ""},
		{metaData{Status: exitStatusOutOfMemory}, dto.ExecutionMemoryLimitExceeded, ""},
		{metaData{Status: exitStatusRuntimeError, ExitCode: 3}, dto.ExecutionRuntimeError, "exit status 3"},
		{metaData{Status: exitStatusSignal, ExitSignal: 11}, dto.ExecutionRuntimeError, "SIGSEGV"},
		{metaData{Status: exitStatusSignal, ExitSignal: 25}, dto.ExecutionRuntimeError, "output limit exceeded"},
	}
	for _, tt := range tests {
		out := metaToOutcome(&tt.meta, req)
		if out.Status != tt.expected {
			t.Fatalf("%+v: expected %v, got %v", tt.meta, tt.expected, out.Status)
		}
		if !strings.Contains(out.Diagnostic, tt.diag) {
			t.Fatalf("diagnostic %q does not contain %q", out.Diagnostic, tt.diag)
		}
	}
}
