// Package log provides a structured logging interface for zero-inflation
// modeling runs.
//
// The Logger interface is slog-compatible so that callers can switch backends;
// the default implementation writes through github.com/rs/zerolog. Attribute
// keys in attributes.go keep training logs (epochs, losses, data shapes)
// consistent across packages.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("autozi.trainer").With(
//	    log.EstimatorIDKey, model.RunID(),
//	)
//	logger.Info("Training started",
//	    log.SamplesKey, 200,
//	    log.FeaturesKey, 50,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. The With method returns a child
// logger with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	//
	// Example:
	//   logger.Debug("Epoch finished",
	//       log.EpochKey, 12,
	//       log.LossKey, 531.2,
	//   )
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error value it is attached as the "error"
	// field together with its stack trace when one is available.
	//
	// Example:
	//   logger.Error("Training failed",
	//       err,
	//       log.EpochKey, 42,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
// This interface allows for dependency injection and testing with different
// logger implementations.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
