// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fondat/fondat-core/internal/sql/sqlite"
)

func newVerifyCmd(load loadFunc) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "verify-db [path]",
		Short: "Check the database for corruption",
		Long:  "Runs PRAGMA quick_check (or integrity_check with --full) against the database read-only.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, _, err := load()
				if err != nil {
					return err
				}
				path = cfg.Database.Path
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("database: %w", err)
			}

			mode := sqlite.ModeQuick
			if full {
				mode = sqlite.ModeFull
			}
			issues, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				_, err = fmt.Fprintf(out, "%s: ok (%s)\n", path, mode)
				return err
			}
			for _, issue := range issues {
				fmt.Fprintln(out, issue)
			}
			return fmt.Errorf("%s: %d integrity issue(s)", path, len(issues))
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "run the full integrity check")
	return cmd
}
