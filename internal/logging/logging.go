// Package logging wraps the process-wide structured logger.
package logging

import (
	"context"
	"os"
	"sync"

	"github.com/Laisky/zap"
)

// Logger is the process-wide structured logger, initialised by Init.
var Logger *zap.Logger

type contextKey struct{}

// NewContext returns a context carrying lg, retrievable by From. Used by
// middleware.RequestLogging to hand every downstream call (selector,
// adaptor, token refresh) a logger already annotated with the request id.
func NewContext(ctx context.Context, lg *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// From returns the logger stashed in ctx by NewContext, or the process-wide
// Logger if none was stashed (background goroutines, tests, calls made
// before Init). Safe to call before Init runs: zap.NewNop() absorbs every
// call silently rather than panicking, the same no-op posture SysLog/SysWarn/
// SysError fall back to.
func From(ctx context.Context) *zap.Logger {
	if lg, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && lg != nil {
		return lg
	}
	if Logger != nil {
		return Logger
	}
	return zap.NewNop()
}

var initOnce sync.Once

// Init builds the global logger. debug enables development-mode (human-readable,
// caller-annotated) output; production mode emits JSON suitable for log shipping.
func Init(debug bool) {
	initOnce.Do(func() {
		var cfg zap.Config
		if debug {
			cfg = zap.NewDevelopmentConfig()
		} else {
			cfg = zap.NewProductionConfig()
		}
		cfg.DisableStacktrace = !debug

		built, err := cfg.Build()
		if err != nil {
			// Logging can't come up; fall back to stderr and keep booting.
			built = zap.NewExample()
		}
		Logger = built
	})
}

// SysLog writes a process-lifecycle line (startup, shutdown, config) at info level.
func SysLog(msg string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Info(msg, fields...)
}

// SysWarn writes a process-lifecycle line at warn level.
func SysWarn(msg string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Warn(msg, fields...)
}

// SysError writes a process-lifecycle line at error level.
func SysError(msg string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Error(msg, fields...)
}

// Fatal logs msg at fatal level and terminates the process, matching the
// fail-fast contract for unrecoverable startup errors.
func Fatal(msg string, fields ...zap.Field) {
	if Logger == nil {
		os.Stderr.WriteString(msg + "\n")
		os.Exit(1)
	}
	Logger.Fatal(msg, fields...)
}
