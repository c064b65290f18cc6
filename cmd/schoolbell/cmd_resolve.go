/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/schedule"
)

var (
	resolveAt       string
	resolveDate     string
	resolveSchedule string
	resolveJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show what the display would render at a given time",
	Long: `Resolve the active period, next break and countdown for one instant.

Examples:
  # Embedded timetable at 07:47
  schoolbell resolve --at 07:47

  # A timetable file, on a given day, as JSON
  schoolbell resolve --at 13:05:30 --date 2026-10-19 --schedule ./raspored.yaml --json
`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAt, "at", "", "Wall-clock time HH:MM or HH:MM:SS (default: now)")
	resolveCmd.Flags().StringVar(&resolveDate, "date", "", "Day as YYYY-MM-DD (default: today)")
	resolveCmd.Flags().StringVar(&resolveSchedule, "schedule", "", "Timetable file (JSON or YAML); empty uses the embedded one")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the resolved state as JSON")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	defer closeLog()

	now, err := parseInstant(resolveDate, resolveAt, time.Now().In(cfg.Location))
	if err != nil {
		return err
	}

	var loader schedule.Loader = schedule.EmbeddedLoader{}
	if resolveSchedule != "" {
		loader = schedule.FileLoader{Path: resolveSchedule}
	}
	sch, err := loader.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	for _, bad := range sch.MalformedPeriods() {
		logger.Warn().Str("period", bad).Msg("malformed period ignored")
	}

	state := resolver.Resolve(now, sch, shiftLabels(cfg))
	if resolveJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	printState(cmd.OutOrStdout(), now, state)
	return nil
}

// parseInstant combines date (YYYY-MM-DD) and clock (HH:MM[:SS]) in ref's
// location. Empty parts are taken from ref.
func parseInstant(date, clock string, ref time.Time) (time.Time, error) {
	day := ref
	if date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, ref.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --date %q: %w", date, err)
		}
		day = d
	}
	if clock == "" {
		y, m, d := day.Date()
		return time.Date(y, m, d, ref.Hour(), ref.Minute(), ref.Second(), 0, ref.Location()), nil
	}

	var t time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want HH:MM or HH:MM:SS", clock)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, ref.Location()), nil
}

func printState(w io.Writer, now time.Time, s resolver.State) {
	fmt.Fprintf(w, "At:        %s\n", now.Format("2006-01-02 15:04:05 MST"))
	if s.ShiftLabel == "" {
		fmt.Fprintln(w, "Outside school hours")
		return
	}
	fmt.Fprintf(w, "Shift:     %s\n", s.ShiftLabel)
	if s.Active != nil {
		line := s.Active.DisplayName
		if s.Active.ClassOrdinal != nil && s.Active.TotalClasses != nil {
			line = fmt.Sprintf("%s (%d/%d)", line, *s.Active.ClassOrdinal, *s.Active.TotalClasses)
		}
		fmt.Fprintf(w, "Active:    %s  %s-%s\n", line,
			s.Active.StartTime.Format("15:04"), s.Active.EndTime.Format("15:04"))
		fmt.Fprintf(w, "Remaining: %s\n", s.Remaining)
	}
	if s.Next != nil {
		fmt.Fprintf(w, "Next:      %s  %s-%s\n", s.Next.Name, s.Next.Start, s.Next.End)
	}
}
