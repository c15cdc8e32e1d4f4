// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-engine/internal/store"
	"github.com/pdiddy/paper-engine/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, inspect, and manage paper sessions",
	Long: `Session manages paper authoring sessions. Each session is tied to one
conversation and tracks stage data, the decision digest, and rewind
history for a single document.`,
}

// --- create ---

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session for a conversation (idempotent)",
	RunE:  runSessionCreate,
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	conversation, _ := cmd.Flags().GetString("conversation")
	idea, _ := cmd.Flags().GetString("idea")
	if owner == "" || conversation == "" {
		return fmt.Errorf("--owner and --conversation are required")
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := engine.CreateSession(context.Background(), owner, conversation, idea)
	if err != nil {
		return err
	}
	fmt.Println(sess.ID)
	return nil
}

// --- show ---

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	var sess *types.PaperSession
	if conversation, _ := cmd.Flags().GetString("conversation"); conversation != "" {
		sess, err = engine.GetSessionByConversation(context.Background(), conversation)
	} else if len(args) == 1 {
		sess, err = engine.GetSession(context.Background(), args[0])
	} else {
		return fmt.Errorf("a session id or --conversation is required")
	}
	if err != nil {
		return err
	}
	return writeYAML(sess)
}

// --- list ---

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's sessions",
	RunE:  runSessionList,
}

func runSessionList(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	if owner == "" {
		return fmt.Errorf("--owner is required")
	}
	status, _ := cmd.Flags().GetString("status")
	archived, _ := cmd.Flags().GetBool("archived")
	asc, _ := cmd.Flags().GetBool("oldest-first")

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, err := engine.ListSessions(context.Background(), owner, store.ListOptions{
		Status:          types.StageStatus(status),
		IncludeArchived: archived,
		SortAsc:         asc,
	})
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		title := sess.PaperTitle
		if title == "" {
			title = sess.WorkingTitle
		}
		fmt.Printf("%s  %-18s %-20s %s\n", sess.ID, sess.CurrentStage, sess.StageStatus, title)
	}
	fmt.Fprintf(os.Stderr, "%d session(s)\n", len(sessions))
	return nil
}

// --- history ---

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Print a session's rewind history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := engine.RewindHistory(context.Background(), args[0])
		if err != nil {
			return err
		}
		return writeYAML(records)
	},
}

// --- drilldown ---

var sessionDrilldownCmd = &cobra.Command{
	Use:   "drilldown [session-id]",
	Short: "Print a stage-by-stage summary of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := engine.GetDrilldown(context.Background(), args[0])
		if err != nil {
			return err
		}
		return writeYAML(report)
	},
}

// --- delete ---

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session and all dependent records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.DeleteSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "deleted", args[0])
		return nil
	},
}

// writeYAML encodes v to stdout.
func writeYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(v)
}

func init() {
	sessionCreateCmd.Flags().String("owner", "", "owner identity")
	sessionCreateCmd.Flags().String("conversation", "", "conversation reference")
	sessionCreateCmd.Flags().String("idea", "", "initial paper idea")

	sessionShowCmd.Flags().String("conversation", "", "look up by conversation instead of id")

	sessionListCmd.Flags().String("owner", "", "owner identity")
	sessionListCmd.Flags().String("status", "", "filter by stage status")
	sessionListCmd.Flags().Bool("archived", false, "include archived sessions")
	sessionListCmd.Flags().Bool("oldest-first", false, "sort by update time ascending")

	sessionCmd.AddCommand(sessionCreateCmd, sessionShowCmd, sessionListCmd,
		sessionHistoryCmd, sessionDrilldownCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
