// Command test runs one prepared program through the configured backend and
// prints the raw execution outcome. It is meant for checking a host setup.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cutekitek/rankode-judge/internal/app"
	"github.com/cutekitek/rankode-judge/internal/config"
	"github.com/cutekitek/rankode-judge/internal/repository/dto"
	"github.com/cutekitek/rankode-judge/internal/runner/process"
)

func panicErr(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	process.Init()

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: test <program> <input> [time_ms] [memory_kb]")
		os.Exit(2)
	}
	timeLimit, memoryLimit := int64(1000), int64(256*1024)
	var err error
	if len(os.Args) > 3 {
		timeLimit, err = strconv.ParseInt(os.Args[3], 10, 64)
		panicErr(err)
	}
	if len(os.Args) > 4 {
		memoryLimit, err = strconv.ParseInt(os.Args[4], 10, 64)
		panicErr(err)
	}

	cfg, err := config.NewConfig()
	panicErr(err)
	config.SetLogLevel(cfg.LogLevel)
	executor, closeExecutor, err := app.NewExecutor(cfg)
	panicErr(err)
	defer closeExecutor()

	dir, err := os.MkdirTemp("", "judge-test-")
	panicErr(err)
	defer os.RemoveAll(dir)

	res, err := executor.Run(context.Background(), &dto.RunRequest{
		ArtifactPath:  os.Args[1],
		InputPath:     os.Args[2],
		OutputPath:    filepath.Join(dir, "out"),
		ErrorPath:     filepath.Join(dir, "err"),
		TimeLimit:     time.Duration(timeLimit) * time.Millisecond,
		MemoryLimit:   memoryLimit,
		MaxOutputSize: cfg.MaxOutputSize,
	})
	panicErr(err)
	fmt.Printf("status: %s exit: %d time: %s memory: %d KB\n", res.Status, res.ExitStatus, res.Time, res.MemoryKB)
	if res.Diagnostic != "" {
		fmt.Println(res.Diagnostic)
	}
	out, err := os.ReadFile(res.OutputPath)
	panicErr(err)
	fmt.Print(string(out))
}
