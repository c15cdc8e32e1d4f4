// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-engine/internal/outline"
	"github.com/pdiddy/paper-engine/pkg/types"
)

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Inspect and check outline sections",
}

var outlineShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session's outline sections with completeness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		sections, err := engine.OutlineSections(context.Background(), args[0])
		if err != nil {
			return err
		}
		if err := writeYAML(sections); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "completeness: %d%%\n", outline.Completeness(sections))
		return nil
	},
}

var outlineCheckCmd = &cobra.Command{
	Use:   "check [session-id] [section-id]",
	Short: "Mark a section's status on the user's behalf",
	Long: `Check records an explicit user decision on one outline section. A
user-checked section is never overwritten by automatic propagation, and
rewinds leave it untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		switch types.SectionStatus(status) {
		case types.SectionComplete, types.SectionPartial, types.SectionEmpty:
		default:
			return fmt.Errorf("invalid --status %q: use complete, partial, or empty", status)
		}

		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()
		return engine.CheckOutlineSection(context.Background(), args[0], args[1], types.SectionStatus(status))
	},
}

func init() {
	outlineCheckCmd.Flags().String("status", "complete", "section status: complete, partial, or empty")

	outlineCmd.AddCommand(outlineShowCmd, outlineCheckCmd)
	rootCmd.AddCommand(outlineCmd)
}
