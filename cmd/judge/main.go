package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cutekitek/rankode-judge/internal/app"
	"github.com/cutekitek/rankode-judge/internal/config"
	"github.com/cutekitek/rankode-judge/internal/runner/process"
	"github.com/cutekitek/rankode-judge/internal/submission"
)

const usage = "usage: judge <id> <language> <source> <time_ms> <memory_kb> <count> <input#output>..."

func main() {
	process.Init()

	cfg, err := config.NewConfig()
	if err != nil {
		fail(err)
	}
	config.SetLogLevel(cfg.LogLevel)

	sub, err := submission.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		fail(err)
	}

	executor, closeExecutor, err := app.NewExecutor(cfg)
	if err != nil {
		fail(err)
	}
	defer closeExecutor()
	rep, closeReporter, err := app.NewReporter(cfg)
	if err != nil {
		fail(err)
	}
	defer closeReporter()
	j, err := app.NewJudge(cfg, executor, rep)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := j.Run(ctx, sub); err != nil {
		slog.Error("judging failed", "submission", sub.Id, "error", err)
		closeReporter()
		closeExecutor()
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
