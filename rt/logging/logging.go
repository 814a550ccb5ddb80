package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config holds configuration for the logger
type Config struct {
	Environment string
	Level       string
	Service     string
}

// ZapLogger adapts a zap sugared logger to Logger. The level is atomic so
// SetDebug can flip it while the frame loop is running.
type ZapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// New creates a logger with the given configuration
func New(cfg Config) *ZapLogger {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	encoding := "json"
	if cfg.Environment == "development" {
		encoding = "console"
	}

	level := levelFromString(cfg.Level)
	config := zap.Config{
		Level:            level,
		Development:      cfg.Environment == "development",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	if cfg.Service != "" {
		logger = logger.Named(cfg.Service)
	}

	return &ZapLogger{level: level, sugar: logger.Sugar()}
}

// NewWithCore wraps an existing zap core, mostly so tests can capture output.
func NewWithCore(core zapcore.Core, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{level: level, sugar: zap.New(core).Sugar()}
}

func (l *ZapLogger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func (l *ZapLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func (l *ZapLogger) Sync() {
	_ = l.sugar.Sync()
}

func levelFromString(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

type nopLogger struct{}

func NewNop() Logger                                      { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                   { return false }
func (n *nopLogger) SetDebug(enabled bool)                {}
func (n *nopLogger) Debugf(format string, args ...any)    {}
func (n *nopLogger) Infof(format string, args ...any)     {}
func (n *nopLogger) Warnf(format string, args ...any)     {}
func (n *nopLogger) Errorf(format string, args ...any)    {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return l
}
