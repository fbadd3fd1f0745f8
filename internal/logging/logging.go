// Package logging builds the process logger on top of charmbracelet/log.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

type Options struct {
	Writer io.Writer
	Level  string
	Prefix string
}

func New(opts Options) *log.Logger {
	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}

	lvl, err := log.ParseLevel(opts.Level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
}

// Discard is a logger for tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
