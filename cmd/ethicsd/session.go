package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Commit or clear extraction sessions",
}

var sessionCommitCmd = &cobra.Command{
	Use:   "commit <session-id>",
	Short: "Atomically commit a session's surviving candidates",
	Long: `Atomically commit every non-deleted candidate in the session and
close it. Committing an already-closed session replays the prior result
instead of re-committing.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(sessionCommit),
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Clear a session's non-committed candidates for a re-run",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(sessionClear),
}

func init() {
	sessionCmd.AddCommand(sessionCommitCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}

func sessionCommit(a *app, cmd *cobra.Command, args []string) error {
	result, err := a.review.Commit(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if result.Replayed {
		fmt.Fprintf(cmd.OutOrStdout(), "session %s already committed (%d entities)\n", result.SessionID, len(result.EntityIDs))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s committed: %d entities\n", result.SessionID, len(result.EntityIDs))
	return nil
}

func sessionClear(a *app, cmd *cobra.Command, args []string) error {
	cleared, err := a.review.ClearAndRerun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared: %d candidates removed; re-run the extraction step\n", args[0], cleared)
	return nil
}
