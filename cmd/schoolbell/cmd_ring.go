/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/db"
	"github.com/friendsincode/schoolbell/internal/settings"
)

var ringDurationMs int

var ringCmd = &cobra.Command{
	Use:   "ring",
	Short: "Ring the bell once through the configured transport",
	Long: `Open the configured relay, ring once and close it again.

The bell settings stored by a running kiosk are used, so a disabled bell
stays silent. Do not run this while "schoolbell serve" holds the port.

Examples:
  # Ring for the configured duration
  schoolbell ring

  # Ring for two seconds
  schoolbell ring --duration 2000
`,
	RunE: runRing,
}

func init() {
	ringCmd.Flags().IntVar(&ringDurationMs, "duration", 0, "Ring length in milliseconds (default: stored bell duration)")
	rootCmd.AddCommand(ringCmd)
}

func runRing(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	defer closeLog()

	if ringDurationMs != 0 && (ringDurationMs < settings.MinBellDurationMs || ringDurationMs > settings.MaxBellDurationMs) {
		return fmt.Errorf("--duration must be within [%d, %d] ms", settings.MinBellDurationMs, settings.MaxBellDurationMs)
	}

	ctx := cmd.Context()
	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	store, err := settings.NewStore(ctx, database, cfg.BellDefaults, logger)
	if err != nil {
		return fmt.Errorf("load bell settings: %w", err)
	}

	opener, err := buildOpener(cfg)
	if err != nil {
		return err
	}
	link := bell.NewLink(opener, store, logger)
	if err := link.Connect(ctx); err != nil {
		return err
	}
	if !link.IsConnected() {
		return bell.ErrNoDevice
	}
	defer func() {
		if err := link.Disconnect(); err != nil {
			logger.Error().Err(err).Msg("disconnect failed")
		}
	}()

	d := time.Duration(ringDurationMs) * time.Millisecond
	if d == 0 {
		d = store.Current().BellDuration()
	}
	if err := link.Ring(ctx, d); err != nil {
		return err
	}
	if !store.Current().BellEnabled {
		fmt.Fprintln(cmd.OutOrStdout(), "Bell is disabled in settings; nothing was sent.")
		return nil
	}

	// Disconnect sends the stop frame itself if the timer has not fired yet.
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rang %s for %s\n", link.Status().Device, d)
	return nil
}
