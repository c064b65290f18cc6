/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/schoolbell/internal/db"
	"github.com/friendsincode/schoolbell/internal/settings"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset-settings",
	Short: "Restore the stored bell settings to their defaults",
	Long: `Overwrite the persisted bell settings with the defaults from the
environment (SCHOOLBELL_BELL_* variables, or the built-in factory values).

Examples:
  # Interactive reset (will prompt for confirmation)
  schoolbell reset-settings

  # Force reset without confirmation
  schoolbell reset-settings --force
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	defer closeLog()

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

	if !resetForce {
		cur, def := store.Current(), cfg.BellDefaults
		fmt.Printf("Current:  baud %d, duration %dms, enabled %t, auto-connect %t\n",
			cur.BaudRate, cur.BellDurationMs, cur.BellEnabled, cur.AutoConnectEnabled)
		fmt.Printf("Defaults: baud %d, duration %dms, enabled %t, auto-connect %t\n",
			def.BaudRate, def.BellDurationMs, def.BellEnabled, def.AutoConnectEnabled)
		fmt.Print("Type 'yes' to confirm reset: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	if _, err := store.Reset(ctx); err != nil {
		return err
	}
	logger.Info().Msg("bell settings reset to defaults")
	return nil
}
