package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	Level       string
	Development bool
	// Service is attached to every entry when set.
	Service string
}

var (
	current atomic.Pointer[zap.Logger]
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	current.Store(zap.NewNop())
}

// Init is shorthand for Configure without a service name.
func Init(lvl string, development bool) error {
	return Configure(Options{Level: lvl, Development: development})
}

// Configure replaces the global logger. Unknown levels fall back to info.
func Configure(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	SetLevel(opts.Level)
	cfg.Level = level

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	if opts.Service != "" {
		built = built.With(zap.String("service", opts.Service))
	}
	Replace(built)
	return nil
}

// Replace installs l as the global logger. A nil logger discards output.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// SetLevel adjusts the level of loggers built by Configure.
func SetLevel(lvl string) {
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(lvl))); err != nil {
		parsed = zapcore.InfoLevel
	}
	level.SetLevel(parsed)
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return current.Load()
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Email logs an address with the local part masked, keeping the first
// character and the domain: "j***@example.com".
func Email(key, address string) zap.Field {
	local, domain, ok := strings.Cut(strings.TrimSpace(address), "@")
	if !ok || local == "" {
		return zap.String(key, "***")
	}
	return zap.String(key, local[:1]+"***@"+domain)
}
