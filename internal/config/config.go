package config

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

const envFile = ".env"

type Config struct {
	LogLevel      string `env:"LOG_LEVEL" env-default:"warn"`
	WorkDir       string `env:"WORK_DIR" env-default:"/tmp/rankode-judge"`
	KeepWorkspace bool   `env:"KEEP_WORKSPACE" env-default:"false"`

	RunnerBackend    string `env:"RUNNER_BACKEND" env-default:"process"`
	SandboxPoolSize  int    `env:"SANDBOX_POOL_SIZE" env-default:"0"`
	IsolateBoxes     int    `env:"ISOLATE_BOXES" env-default:"0"`
	CompileTimeoutMs int    `env:"COMPILE_TIMEOUT_MS" env-default:"30000"`
	MaxOutputSize    int64  `env:"MAX_OUTPUT_SIZE" env-default:"67108864"`
	ToolchainsPath   string `env:"TOOLCHAINS_PATH" env-default:""`
	// -1 runs programs as nobody when the judge is root
	RunUid           int    `env:"RUN_UID" env-default:"-1"`
	RunGid           int    `env:"RUN_GID" env-default:"-1"`

	CheckerAllowTrailingLines bool `env:"CHECKER_ALLOW_TRAILING_LINES" env-default:"false"`
	CheckerRejectShortLines   bool `env:"CHECKER_REJECT_SHORT_LINES" env-default:"false"`

	Reporter    string `env:"REPORTER" env-default:"log"`
	ResultURL   string `env:"RESULT_URL" env-default:""`
	RedisAddr   string `env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	RedisStream string `env:"REDIS_STREAM" env-default:"judge:results"`

	MinIOHost        string `env:"MINIO_HOST" env-default:"127.0.0.1:9000"`
	MinIOLogin       string `env:"MINIO_LOGIN"`
	MinIOPassword    string `env:"MINIO_PASSWORD"`
	MinIOBucket      string `env:"MINIO_BUCKET" env-default:"tasks"`
	RabbitMQHost     string `env:"RABBIT_HOST" env-default:"127.0.0.1"`
	RabbitMQPort     int    `env:"RABBIT_PORT" env-default:"5672"`
	RabbitMQUser     string `env:"RABBIT_USER" env-default:"guest"`
	RabbitMQPassword string `env:"RABBIT_PASSWORD" env-default:"guest"`
	WorkersCount     int    `env:"WORKERS_COUNT" env-default:"0"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}

	var err error
	if _, statErr := os.Stat(envFile); statErr == nil {
		err = cleanenv.ReadConfig(envFile, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.WorkersCount <= 0 {
		cfg.WorkersCount = runtime.NumCPU()
	}
	if cfg.SandboxPoolSize <= 0 {
		cfg.SandboxPoolSize = cfg.WorkersCount
	}
	if cfg.IsolateBoxes <= 0 {
		cfg.IsolateBoxes = cfg.WorkersCount
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RunnerBackend {
	case "process", "sandbox", "isolate":
	default:
		return errors.Errorf("unknown RUNNER_BACKEND %q", c.RunnerBackend)
	}
	switch c.Reporter {
	case "log", "redis", "rabbitmq":
	case "http":
		if c.ResultURL == "" {
			return errors.New("RESULT_URL is required for the http reporter")
		}
	default:
		return errors.Errorf("unknown REPORTER %q", c.Reporter)
	}
	return nil
}

func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.CompileTimeoutMs) * time.Millisecond
}

func SetLogLevel(level string) {
	switch level {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "info":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}
}
