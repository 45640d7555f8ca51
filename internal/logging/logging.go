// Package logging configures the process-wide diagnostic logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func init() {
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel}))
}

// Setup configures the default logger. verbosity 0 logs info and above,
// 1 adds debug output, 2 or more also reports the caller. quiet wins over
// verbosity and keeps only warnings and errors.
func Setup(w io.Writer, verbosity int, quiet bool) *log.Logger {
	level := log.InfoLevel
	switch {
	case quiet:
		level = log.WarnLevel
	case verbosity >= 1:
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:        level,
		ReportCaller: verbosity >= 2,
	})
	log.SetDefault(logger)

	logger.Debug("logger initialized", "verbosity", verbosity)
	return logger
}

// For returns a logger prefixed with a component name
func For(component string) *log.Logger {
	return log.Default().WithPrefix(component)
}

// Discard returns a logger that drops everything, for tests
func Discard() *log.Logger {
	return log.New(io.Discard)
}
