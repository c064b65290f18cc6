/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/schoolbell/internal/bell"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports a relay could be attached to",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := bell.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
		for _, p := range ports {
			id := ""
			if p.USB {
				id = p.VID + ":" + p.PID
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.USB, id, p.SerialNumber, p.Product)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
