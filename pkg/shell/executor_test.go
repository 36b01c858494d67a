package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestRunAndCollectStdout(t *testing.T) {
	out, err := NewCommand(context.Background(), "sh", "-c", "echo '  /var/lib/box  '").RunAndCollectStdout()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "/var/lib/box" {
		t.Fatalf("unexpected output %q", out)
	}

	_, err = NewCommand(context.Background(), "sh", "-c", "exit 4").RunAndCollectStdout()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 4 {
		t.Fatalf("expected exit error with code 4, got %v", err)
	}
}

func TestRunWithStderrFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stderr")
	err := NewCommand(context.Background(), "sh", "-c", "echo oops >&2; exit 1").RunWithStderrFile(path)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "oops\n" {
		t.Fatalf("unexpected stderr %q", data)
	}
}

func TestStartError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stderr")
	err := NewCommand(context.Background(), "/nonexistent/compiler").RunWithStderrFile(path)
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
	_, err = NewCommand(context.Background(), "/nonexistent/isolate").RunAndCollectStdout()
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
}
