package isolate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cutekitek/rankode-judge/pkg/shell"
	"github.com/pkg/errors"
)

type IsolatedBox struct {
	BoxId    int
	FilesDir string
}

type runParams struct {
	Timeout time.Duration
	// kilobytes
	MemoryLimit int64
	// kilobytes
	MaxFileSize int64
	Processes   int
	// relative to the box
	Stdin  string
	Stdout string
	Stderr string
}

type runnableWithMeta struct {
	*shell.Command
	Meta metaFile
}

func boxArg(boxId int) string {
	return fmt.Sprintf("--box-id=%d", boxId)
}

func NewIsolatedBox(ctx context.Context, boxId int) (*IsolatedBox, error) {
	cmd := shell.NewCommand(ctx, IsolatedExecPath, "--cg", boxArg(boxId), "--init")
	baseDir, err := cmd.RunAndCollectStdout()
	if err != nil {
		return nil, errors.Wrap(err, "failed to init isolate box")
	}
	return &IsolatedBox{
		BoxId:    boxId,
		FilesDir: filepath.Join(baseDir, "box"),
	}, nil
}

func (b *IsolatedBox) Run(ctx context.Context, params runParams, command string, args ...string) (*runnableWithMeta, error) {
	metafile, err := os.CreateTemp("", "boxmeta")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a meta file")
	}
	metafile.Close()

	isolateArgs := []string{
		"--cg",
		boxArg(b.BoxId),
		"--silent",
		"--meta=" + metafile.Name(),
		fmt.Sprintf("--time=%.3f", params.Timeout.Seconds()),
		fmt.Sprintf("--wall-time=%.3f", params.Timeout.Seconds()),
		"--extra-time=0",
		fmt.Sprintf("--processes=%d", params.Processes),
		"--stdin=" + params.Stdin,
		"--stdout=" + params.Stdout,
		"--stderr=" + params.Stderr,
	}
	if params.MemoryLimit > 0 {
		isolateArgs = append(isolateArgs, fmt.Sprintf("--cg-mem=%d", params.MemoryLimit))
	}
	if params.MaxFileSize > 0 {
		isolateArgs = append(isolateArgs, fmt.Sprintf("--fsize=%d", params.MaxFileSize))
	}
	isolateArgs = append(isolateArgs, "--run", "--", command)

	cmd := shell.NewCommand(ctx, IsolatedExecPath, append(isolateArgs, args...)...)
	return &runnableWithMeta{Command: cmd, Meta: metaFile{path: metafile.Name()}}, nil
}

func (b *IsolatedBox) Path(name string) string {
	return filepath.Join(b.FilesDir, name)
}

func (b *IsolatedBox) Clean() {
	shell.NewCommand(context.Background(), IsolatedExecPath, "--cg", boxArg(b.BoxId), "--cleanup").Cmd.Run()
}
