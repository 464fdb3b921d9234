// Package plog is the orchestrator's own logging voice.
//
// Console output keeps the split the operators rely on: informational
// records go to stdout, warnings and errors to stderr. An optional JSON
// file sink with size-based rotation can be attached for hosts that keep
// a local audit trail. The per-run engine output files are separate
// artifacts and never pass through this package.
package plog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Level is the minimum severity the logger emits.
type Level int8

// Levels align with zapcore's numbering so casts stay trivial.
const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// LevelFromString parses a level name from configuration or flags.
func LevelFromString(s string) (Level, error) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

var (
	mu       sync.Mutex
	atomicLv = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	filePath string
	sugar    *zap.SugaredLogger
)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func consoleCores() []zapcore.Core {
	enc := zapcore.NewConsoleEncoder(encoderConfig())

	// Info and below go to stdout, warnings and above to stderr.
	stdoutEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return atomicLv.Enabled(l) && l < zapcore.WarnLevel
	})
	stderrEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return atomicLv.Enabled(l) && l >= zapcore.WarnLevel
	})

	return []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), stdoutEnabler),
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), stderrEnabler),
	}
}

func rebuild() {
	cores := consoleCores()
	if filePath != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     90, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), fileSink, atomicLv))
	}
	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
}

func init() {
	rebuild()
}

// SetLevel changes the minimum severity for all sinks.
func SetLevel(l Level) {
	atomicLv.SetLevel(zapcore.Level(l))
}

// ConfigureFile attaches a rotating JSON log file alongside console output.
// An empty path detaches any previously configured file.
func ConfigureFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	filePath = path
	rebuild()
}

// SetOutput redirects all output to w, primarily for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(w), atomicLv)
	sugar = zap.New(core).Sugar()
}

// Sync flushes buffered records. Called once before process exit.
func Sync() {
	_ = sugar.Sync()
}

// Debug logs a debug message with alternating key-value context.
func Debug(msg string, args ...any) {
	sugar.Debugw(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	sugar.Infow(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	sugar.Warnw(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	sugar.Errorw(msg, args...)
}
