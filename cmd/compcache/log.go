package main

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger backed by a charmbracelet handler on w.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "compcache",
		ReportTimestamp: false,
		Level:           log.InfoLevel,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return slog.New(logger)
}
