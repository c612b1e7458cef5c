package ndp

//
// Logging
//

import "github.com/apex/log"

// Logger is the logging interface used throughout this package.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// ApexLogger adapts [github.com/apex/log]'s default logger to [Logger].
// The zero value is ready to use.
type ApexLogger struct{}

var _ Logger = &ApexLogger{}

// Debug implements Logger.
func (*ApexLogger) Debug(message string) { log.Debug(message) }

// Debugf implements Logger.
func (*ApexLogger) Debugf(format string, v ...any) { log.Debugf(format, v...) }

// Info implements Logger.
func (*ApexLogger) Info(message string) { log.Info(message) }

// Infof implements Logger.
func (*ApexLogger) Infof(format string, v ...any) { log.Infof(format, v...) }

// Warn implements Logger.
func (*ApexLogger) Warn(message string) { log.Warn(message) }

// Warnf implements Logger.
func (*ApexLogger) Warnf(format string, v ...any) { log.Warnf(format, v...) }

// NullLogger is a [Logger] that discards all messages. Handy for tests.
type NullLogger struct{}

var _ Logger = &NullLogger{}

// Debug implements Logger.
func (*NullLogger) Debug(message string) {}

// Debugf implements Logger.
func (*NullLogger) Debugf(format string, v ...any) {}

// Info implements Logger.
func (*NullLogger) Info(message string) {}

// Infof implements Logger.
func (*NullLogger) Infof(format string, v ...any) {}

// Warn implements Logger.
func (*NullLogger) Warn(message string) {}

// Warnf implements Logger.
func (*NullLogger) Warnf(format string, v ...any) {}
