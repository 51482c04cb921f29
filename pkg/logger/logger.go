// Package logger provides the process-wide structured logger.
// Before Init every call is a no-op, so library code can log unconditionally.
package logger

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevelAt(zap.DebugLevel)

	mu      sync.Mutex
	logFile *lumberjack.Logger
)

// Options configures the file sink and an optional console mirror.
type Options struct {
	Path       string       // JSON log file, rotated by size
	MaxSizeMB  int          // Rotate after this many megabytes (default 20)
	MaxBackups int          // Rotated files to keep (default 3)
	Level      string       // debug, info, warn, error (default debug)
	Console    io.Writer    // Human-readable mirror, e.g. os.Stderr with --verbose
	Fields     []zap.Field  // Attached to every entry
	Extra      []zap.Option // Additional logger options
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(Options{Path: logPath})
}

// InitWithOptions replaces the global logger. A previous log file is closed.
func InitWithOptions(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := zapcore.DebugLevel
	if opts.Level != "" {
		if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	level.SetLevel(lvl)

	var cores []zapcore.Core
	var file *lumberjack.Logger
	if opts.Path != "" {
		file = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    orDefault(opts.MaxSizeMB, 20),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(file), level))
	}
	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.AddSync(opts.Console), level))
	}
	if len(cores) == 0 {
		return fmt.Errorf("logger needs a file path or a console writer")
	}

	options := append([]zap.Option{zap.AddStacktrace(zap.ErrorLevel)}, opts.Extra...)
	l := zap.New(zapcore.NewTee(cores...), options...)
	if len(opts.Fields) > 0 {
		l = l.With(opts.Fields...)
	}

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	global.Store(l)
	return nil
}

// Close flushes and closes the log file. Later calls are no-ops until the next Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if l := global.Swap(nil); l != nil {
		_ = l.Sync()
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Named returns a sugared logger for one component (locator, bridge, executor...).
func Named(component string) *zap.SugaredLogger {
	return L().Named(component).Sugar()
}

// SetLevel changes the level of every logger handed out so far.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// SetVerbose switches between debug and info level.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Sugar().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Sugar().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Sugar().Warnf(format, v...)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
