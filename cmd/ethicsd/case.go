package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Register and inspect ethics cases",
}

var caseRegisterCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register a case from a JSON file",
	Long: `Register a case from a JSON file containing the parsed narrative
sections and the board record:

  {
    "title": "...",
    "sections": [{"name": "facts", "text": "..."}],
    "board_questions": ["..."],
    "board_conclusions": ["..."],
    "board_resolution": "..."
  }

An id is generated when the file does not provide one.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(caseRegister),
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered cases",
	Args:  cobra.NoArgs,
	RunE:  withApp(caseList),
}

func init() {
	caseCmd.AddCommand(caseRegisterCmd)
	caseCmd.AddCommand(caseListCmd)
}

func caseRegister(a *app, cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read case file: %w", err)
	}

	var c casefile.Case
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("failed to parse case file: %w", err)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if err := a.store.CreateCase(cmd.Context(), &c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "case %s registered: %s (%d sections)\n", c.ID, c.Title, len(c.Sections))
	return nil
}

func caseList(a *app, cmd *cobra.Command, args []string) error {
	cases, err := a.store.ListCases(cmd.Context())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no cases")
		return nil
	}
	for _, c := range cases {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", c.ID, c.Title)
	}
	return nil
}
