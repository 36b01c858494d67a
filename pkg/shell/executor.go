package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StartError means the process could not be started at all (missing binary,
// permissions), as opposed to a process that ran and failed.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

type Command struct {
	Cmd *exec.Cmd
}

func NewCommand(ctx context.Context, command string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = time.Second
	return &Command{Cmd: cmd}
}

func (c *Command) RunAndCollectStdout() (string, error) {
	data, err := c.Cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &StartError{Name: c.Cmd.Path, Err: err}
		}
	}
	return strings.TrimSpace(string(data)), err
}

// RunWithStderrFile runs the command with stderr redirected into a freshly
// truncated file at path. Stdout is discarded.
func (c *Command) RunWithStderrFile(path string) error {
	stderr, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create stderr file")
	}
	defer stderr.Close()
	c.Cmd.Stderr = stderr

	if err := c.Cmd.Start(); err != nil {
		return &StartError{Name: c.Cmd.Path, Err: err}
	}
	return c.Cmd.Wait()
}
