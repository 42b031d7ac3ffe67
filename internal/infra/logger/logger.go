package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config drives how the zap logger is built.
type Config struct {
	Development bool
	Level       string
	Encoding    string
}

// ConfigFromEnv reads APP_ENV, LOG_LEVEL and LOG_ENCODING. Anything other
// than APP_ENV=production is treated as development.
func ConfigFromEnv() Config {
	return Config{
		Development: !strings.EqualFold(os.Getenv("APP_ENV"), "production"),
		Level:       os.Getenv("LOG_LEVEL"),
		Encoding:    os.Getenv("LOG_ENCODING"),
	}
}

var (
	mu     sync.Mutex
	global *zap.Logger

	// zap writes to stderr, so colour follows whether stderr is a terminal.
	colorize = sync.OnceValue(func() bool {
		return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stderr.Fd()))
	})
)

// MustInit builds the process logger and keeps it for Sync. It panics on an
// invalid config.
func MustInit(cfg Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}

	mu.Lock()
	global = l
	mu.Unlock()
	return l
}

// Sync flushes the logger built by MustInit. Errors from syncing a terminal
// or pipe are ignored.
func Sync() error {
	mu.Lock()
	l := global
	mu.Unlock()
	if l == nil {
		return nil
	}

	err := l.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

// New returns a logger tagged with the service name. Development uses the
// console encoder unless cfg.Encoding says otherwise.
func New(cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.EncoderConfig = encoderConfig(zapCfg.Encoding == "console")

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("logger: build: %w", err)
	}
	return l.With(zap.String("service", "tinyurl")), nil
}

func encoderConfig(console bool) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.StacktraceKey = "stack"
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	if console {
		enc.ConsoleSeparator = " | "
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		enc.EncodeLevel = consoleLevelEncoder
	}
	return enc
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel: "\x1b[36m",
	zapcore.InfoLevel:  "\x1b[32m",
	zapcore.WarnLevel:  "\x1b[33m",
	zapcore.ErrorLevel: "\x1b[31m",
}

func consoleLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := fmt.Sprintf("%-5s", level.CapitalString())
	if !colorize() {
		enc.AppendString(label)
		return
	}
	color, ok := levelColors[level]
	if !ok {
		color = "\x1b[35m"
	}
	enc.AppendString(color + label + "\x1b[0m")
}
