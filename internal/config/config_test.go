package config

import (
	"runtime"
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RUNNER_BACKEND", "process")
	t.Setenv("REPORTER", "log")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.WorkersCount != runtime.NumCPU() || cfg.SandboxPoolSize != cfg.WorkersCount {
		t.Fatalf("unexpected pool sizes %d %d", cfg.WorkersCount, cfg.SandboxPoolSize)
	}
	if cfg.CompileTimeout() != 30*time.Second {
		t.Fatalf("unexpected compile timeout %s", cfg.CompileTimeout())
	}
	if cfg.RunUid != -1 || cfg.MaxOutputSize != 64<<20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"backend", map[string]string{"RUNNER_BACKEND": "docker"}},
		{"reporter", map[string]string{"REPORTER": "smtp"}},
		{"http without url", map[string]string{"REPORTER": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := NewConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
