package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cutekitek/rankode-judge/internal/app"
	"github.com/cutekitek/rankode-judge/internal/config"
	"github.com/cutekitek/rankode-judge/internal/files"
	"github.com/cutekitek/rankode-judge/internal/rabbitmq"
	"github.com/cutekitek/rankode-judge/internal/reporter"
	"github.com/cutekitek/rankode-judge/internal/runner/process"
	"github.com/cutekitek/rankode-judge/internal/submission"
)

func panicErr(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	process.Init()

	cfg, err := config.NewConfig()
	panicErr(err)
	config.SetLogLevel(cfg.LogLevel)

	executor, closeExecutor, err := app.NewExecutor(cfg)
	panicErr(err)
	defer closeExecutor()

	fileStorage, err := files.NewFileStorage(files.Config{
		Url:      cfg.MinIOHost,
		Login:    cfg.MinIOLogin,
		Password: cfg.MinIOPassword,
		Bucket:   cfg.MinIOBucket,
	})
	panicErr(err)
	panicErr(os.MkdirAll(cfg.WorkDir, 0755))

	// the judge needs its reporter before the handler can be built, so the
	// publisher is resolved lazily through a forwarding reporter
	forward := &forwardReporter{}
	j, err := app.NewJudge(cfg, executor, forward)
	panicErr(err)
	listener := rabbitmq.NewRabbitMQHandler(rabbitmq.RabbitMqHandlerConfig{
		Login:        cfg.RabbitMQUser,
		Password:     cfg.RabbitMQPassword,
		Host:         cfg.RabbitMQHost,
		Port:         cfg.RabbitMQPort,
		WorkersCount: cfg.WorkersCount,
		DataDir:      cfg.WorkDir,
	}, j, submission.NewLoader(fileStorage))

	var rep reporter.Reporter
	if cfg.Reporter == "rabbitmq" {
		rep = listener.Publisher()
	} else {
		var closeReporter func()
		rep, closeReporter, err = app.NewReporter(cfg)
		panicErr(err)
		defer closeReporter()
	}
	forward.target = rep

	panicErr(listener.Start())
	slog.Info("app started", "backend", cfg.RunnerBackend, "reporter", cfg.Reporter, "workers", cfg.WorkersCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	listener.Close()
}
