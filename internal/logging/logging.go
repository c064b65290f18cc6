/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configure the optional rotating log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Capture, if set, also receives every JSON line (the in-memory log buffer).
	Capture io.Writer
}

// Setup configures zerolog for the process with console output only.
func Setup(environment string) zerolog.Logger {
	logger, _ := SetupWithFile(environment, FileOptions{})
	return logger
}

// SetupWithFile configures zerolog with console output and, when opts.Path is
// set, a rotating JSON log file. The returned closer flushes the file.
func SetupWithFile(environment string, opts FileOptions) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	// Console writer for human-readable output
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

	writers := []io.Writer{consoleWriter}
	var closer io.Closer = nopCloser{}
	if opts.Path != "" {
		file := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays, // days
			LocalTime:  true,
		}
		// console for the operator, JSON lines in the file
		writers = append(writers, file)
		closer = file
	}
	if opts.Capture != nil {
		writers = append(writers, opts.Capture)
	}

	var writer io.Writer = consoleWriter
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}
	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
