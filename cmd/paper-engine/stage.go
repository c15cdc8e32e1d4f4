// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-engine/pkg/types"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Drive the stage workflow: update, submit, approve, revise, rewind",
	Long: `Stage applies workflow operations to a session's current stage. Edits
run through the stage data guard; submission and approval enforce the
ringkasan gate; rewind steps back at most two validated stages and
cascades invalidation forward.`,
}

// --- update ---

var stageUpdateCmd = &cobra.Command{
	Use:   "update [session-id] [stage]",
	Short: "Sanitize and merge data into the current stage",
	Long: `Update reads a YAML or JSON record from --file (or stdin with -) and
merges it into the stage's data. Unknown keys are stripped and reported;
oversized fields are truncated. The write succeeds even with warnings.`,
	Args: cobra.ExactArgs(2),
	RunE: runStageUpdate,
}

func runStageUpdate(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return fmt.Errorf("--file is required (use - for stdin)")
	}

	var raw []byte
	var err error
	if file == "-" {
		raw, err = os.ReadFile("/dev/stdin")
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}

	data := map[string]any{}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		err = json.Unmarshal(raw, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return fmt.Errorf("parsing data file: %w", err)
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := engine.UpdateStageData(context.Background(), args[0], types.StageID(args[1]), data)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Println("ok")
	return nil
}

// --- submit / approve / revise / dirty ---

var stageSubmitCmd = &cobra.Command{
	Use:   "submit [session-id]",
	Short: "Submit the current stage for validation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()
		return engine.SubmitForValidation(context.Background(), args[0])
	},
}

var stageApproveCmd = &cobra.Command{
	Use:   "approve [session-id]",
	Short: "Approve the pending stage and advance the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.ApproveStage(context.Background(), args[0]); err != nil {
			return err
		}
		sess, err := engine.GetSession(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("advanced to %s\n", sess.CurrentStage)
		return nil
	},
}

var stageReviseCmd = &cobra.Command{
	Use:   "revise [session-id]",
	Short: "Send the current stage back into revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedback, _ := cmd.Flags().GetString("feedback")

		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()
		return engine.RequestRevision(context.Background(), args[0], feedback)
	},
}

var stageDirtyCmd = &cobra.Command{
	Use:   "dirty [session-id]",
	Short: "Flag the current stage's validated content as possibly stale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()
		return engine.MarkStageAsDirty(context.Background(), args[0])
	},
}

// --- rewind ---

var stageRewindCmd = &cobra.Command{
	Use:   "rewind [session-id] [target-stage]",
	Short: "Rewind to a previously validated stage",
	Long: `Rewind moves the session back to a stage at most two catalog positions
behind the current one, provided the target was previously validated.
Every stage from the target up to the current stage is invalidated: its
digest entries are superseded, auto-checked outline sections reset, and
referenced artifacts marked invalid.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		rec, err := engine.RewindToStage(context.Background(), args[0], types.StageID(args[1]))
		if err != nil {
			return err
		}
		return writeYAML(rec)
	},
}

func init() {
	stageUpdateCmd.Flags().String("file", "", "YAML or JSON file with stage data (- for stdin)")
	stageReviseCmd.Flags().String("feedback", "", "revision feedback for the author")

	stageCmd.AddCommand(stageUpdateCmd, stageSubmitCmd, stageApproveCmd,
		stageReviseCmd, stageDirtyCmd, stageRewindCmd)
	rootCmd.AddCommand(stageCmd)
}
