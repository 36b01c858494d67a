package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var ErrEnvironment = errors.New("execution environment failure")

// Executor runs a compiled artifact against one test case. Limit violations
// and crashes are reported through the outcome; the error is reserved for
// failures of the judging environment itself.
type Executor interface {
	Run(ctx context.Context, req *dto.RunRequest) (*dto.ExecutionOutcome, error)
}

// EnvironmentError wraps err so that errors.Is(err, ErrEnvironment) holds.
func EnvironmentError(err error, msg string) error {
	return fmt.Errorf("%w: %s: %v", ErrEnvironment, msg, err)
}

const maxDiagnosticSize = 4096

func ExitReason(code int) string {
	return fmt.Sprintf("exit status %d", code)
}

func SignalReason(sig syscall.Signal) string {
	return fmt.Sprintf("killed by signal %s (%s)", unix.SignalName(sig), sig.String())
}

// Diagnostic joins a termination reason with the head of the program's stderr.
func Diagnostic(reason, stderrPath string) string {
	stderr := strings.TrimSpace(readLimited(stderrPath, maxDiagnosticSize))
	if stderr == "" {
		return reason
	}
	return reason + "\n" + stderr
}

func readLimited(path string, maxBytes int64) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

// OpenCaseFiles opens the input read-only and creates fresh output and
// error files. The caller closes all three.
func OpenCaseFiles(req *dto.RunRequest) (input, output, stderr *os.File, err error) {
	input, err = os.Open(req.InputPath)
	if err != nil {
		return nil, nil, nil, EnvironmentError(err, "failed to open input")
	}
	output, err = os.OpenFile(req.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		input.Close()
		return nil, nil, nil, EnvironmentError(err, "failed to create output file")
	}
	if req.ErrorPath == "" {
		stderr, err = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	} else {
		stderr, err = os.OpenFile(req.ErrorPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	}
	if err != nil {
		input.Close()
		output.Close()
		return nil, nil, nil, EnvironmentError(err, "failed to create stderr file")
	}
	return input, output, stderr, nil
}
