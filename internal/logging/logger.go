// Package logging provides category-scoped zap loggers for venturechat.
// Each subsystem (gateway, session, notify, chat, api) logs through a named
// child of a single shared core so the CLI can switch the whole client to
// debug output with one flag.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the client.
const (
	CategoryGateway = "gateway"
	CategorySession = "session"
	CategoryNotify  = "notify"
	CategoryChat    = "chat"
	CategoryAPI     = "api"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Options controls logger construction.
type Options struct {
	Level string // debug/info/warn/error, default info
	File  string // optional log file; empty logs to stderr
}

// Initialize builds the shared root logger. Safe to call more than once;
// the last call wins. Before Initialize, all loggers are no-ops, which is
// what tests want.
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return err
		}
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	sink := zapcore.Lock(os.Stderr)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level)

	mu.Lock()
	root = zap.New(core)
	mu.Unlock()
	return nil
}

// Get returns the named logger for a category.
func Get(category string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(category)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// SetLogger replaces the root logger. Tests use this to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	root = l
}
