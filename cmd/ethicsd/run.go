package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ethicsd/internal/pipeline"
)

var runWait bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Control pipeline runs",
}

var runStartCmd = &cobra.Command{
	Use:   "start <case-id> <step>",
	Short: "Start a pipeline step for a case",
	Long: `Start a pipeline step for a case. Steps run in order
1, 1b, 2, 2b, 3, 4, 5; a step only starts when its predecessor completed
and no other run is active for the case.

Examples:
  ethicsd run start case-22-7 1
  ethicsd run start case-22-7 4 --wait`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runStart),
}

var runCancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel an active run",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runCancel),
}

var runStatusCmd = &cobra.Command{
	Use:   "status <case-id>",
	Short: "Show the case's runs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runStatus),
}

func init() {
	runStartCmd.Flags().BoolVar(&runWait, "wait", true, "wait for the run to reach a terminal state")
	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runCancelCmd)
	runCmd.AddCommand(runStatusCmd)
}

func runStart(a *app, cmd *cobra.Command, args []string) error {
	caseID, step := args[0], pipeline.StepID(args[1])

	run, err := a.dispatcher.Trigger(cmd.Context(), caseID, step)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s started: case %s step %s\n", run.ID, caseID, step)

	if !runWait {
		return nil
	}
	final, err := waitForRun(cmd.Context(), a, run.ID)
	if err != nil {
		return err
	}
	printRun(cmd, final)
	if final.Status != pipeline.RunCompleted {
		return fmt.Errorf("run finished %s: %s", final.Status, final.ErrorMessage)
	}
	return nil
}

func runCancel(a *app, cmd *cobra.Command, args []string) error {
	if err := a.controller.Cancel(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s cancelled\n", args[0])
	return nil
}

func runStatus(a *app, cmd *cobra.Command, args []string) error {
	runs, err := a.store.RunsForCase(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs")
		return nil
	}
	for _, run := range runs {
		printRun(cmd, run)
	}
	return nil
}

// waitForRun polls until the run reaches a terminal state.
func waitForRun(ctx context.Context, a *app, runID string) (*pipeline.PipelineRun, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		run, err := a.controller.Status(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printRun(cmd *cobra.Command, run *pipeline.PipelineRun) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  step %-2s  %-10s  entities=%d", run.ID, run.Step, run.Status, run.EntityCount)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  error=%q", run.ErrorMessage)
	}
	fmt.Fprintln(out)
}
