package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Inspect synthesized decision points",
}

var decisionListCmd = &cobra.Command{
	Use:   "list <case-id>",
	Short: "List a case's decision points with their options",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(decisionList),
}

func init() {
	decisionCmd.AddCommand(decisionListCmd)
}

func decisionList(a *app, cmd *cobra.Command, args []string) error {
	points, err := a.store.DecisionPointsForCase(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no decision points")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, p := range points {
		fmt.Fprintf(out, "%s  [%s]\n", p.ID, p.SynthesisMethod)
		fmt.Fprintf(out, "  focus:    %s\n", p.FocusDescription)
		fmt.Fprintf(out, "  question: %s\n", p.DecisionQuestion)
		if p.AlignmentScore != nil {
			fmt.Fprintf(out, "  alignment: %.2f\n", *p.AlignmentScore)
		} else {
			fmt.Fprintln(out, "  alignment: unscored")
		}
		for _, opt := range p.Options {
			marker := " "
			if opt.IsBoardChoice {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s option %.2f  %s\n", marker, opt.MoralIntensityScore, opt.Description)
		}
	}
	return nil
}
