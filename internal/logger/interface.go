package logger

import "github.com/Quicklotz/benchd/internal/errors"

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}
