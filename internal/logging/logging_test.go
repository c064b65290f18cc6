/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLevels(t *testing.T) {
	if got := Setup("development").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("development level = %v", got)
	}
	if got := Setup("production").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("production level = %v", got)
	}
}

func TestSetupWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schoolbell.log")
	logger, closer := SetupWithFile("production", FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	logger.Info().Str("component", "test").Msg("bell stopped")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"message":"bell stopped"`) {
		t.Fatalf("log file = %s", raw)
	}
}

func TestSetupWithFileCapturesLines(t *testing.T) {
	var captured strings.Builder
	logger, closer := SetupWithFile("production", FileOptions{Capture: &captured})
	defer closer.Close()

	logger.Warn().Str("component", "timesync").Msg("time sync failed")
	if !strings.Contains(captured.String(), `"component":"timesync"`) {
		t.Fatalf("captured = %q", captured.String())
	}
}
