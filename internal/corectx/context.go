// Package corectx provides the process-wide context value threaded through
// every component: configuration, logging and cancellation.
//
// This replaces the ad-hoc package-level singletons (plugin factories,
// loggers, schedulers) that a dynamically typed implementation tends to
// accumulate: configuration lives in a *CoreContext that cmd/bst builds
// once, and loggers travel on the context.Context passed into each call,
// falling back to a package default logger that cmd/bst sets at startup.
package corectx

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

var (
	defaultLogger   = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger attached to ctx, or the package default
// logger if none was attached, optionally decorated with keysAndValues
// (alternating key, value pairs, mirroring the teacher's GetLogger helper).
func GetLogger(ctx context.Context, keysAndValues ...any) *logrus.Entry {
	logger := getLogger(ctx)
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.WithFields(fields)
}

func getLogger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
			return logger
		}
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the package default logger, used by cmd/bst at
// startup once the configured log level/format is known.
func SetDefaultLogger(logger *logrus.Entry) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}
