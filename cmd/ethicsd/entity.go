package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ethicsd/internal/review"
)

var (
	entityLabel      string
	entityDefinition string
	entityAttrs      []string
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Review candidate entities",
}

var entityListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List a session's candidate entities",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(entityList),
}

var entityEditCmd = &cobra.Command{
	Use:   "edit <entity-id>",
	Short: "Edit a candidate entity",
	Long: `Edit a non-committed candidate entity. Changing the label or
definition marks it modified.

Examples:
  ethicsd entity edit 4f1c... --label "verify AI output"
  ethicsd entity edit 4f1c... --attr tag=verify_before_certify`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(entityEdit),
}

var entityApproveCmd = &cobra.Command{
	Use:   "approve <entity-id>",
	Short: "Confirm a candidate as a new ontology class",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(entityApprove),
}

var entityReassignCmd = &cobra.Command{
	Use:   "reassign <entity-id> <class-uri>",
	Short: "Match a candidate to an existing ontology class",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(entityReassign),
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <entity-id>...",
	Short: "Soft-delete candidates (kept for audit, excluded from commit)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(entityDelete),
}

func init() {
	entityEditCmd.Flags().StringVar(&entityLabel, "label", "", "new label")
	entityEditCmd.Flags().StringVar(&entityDefinition, "definition", "", "new definition")
	entityEditCmd.Flags().StringArrayVar(&entityAttrs, "attr", nil, "attribute to set, key=value (repeatable)")

	entityCmd.AddCommand(entityListCmd)
	entityCmd.AddCommand(entityEditCmd)
	entityCmd.AddCommand(entityApproveCmd)
	entityCmd.AddCommand(entityReassignCmd)
	entityCmd.AddCommand(entityDeleteCmd)
}

func entityList(a *app, cmd *cobra.Command, args []string) error {
	entities, err := a.store.EntitiesBySession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no entities")
		return nil
	}
	for _, e := range entities {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %-14s  %s\n", e.ID, e.ExtractionType, e.Status, e.Label)
	}
	return nil
}

func entityEdit(a *app, cmd *cobra.Command, args []string) error {
	patch := review.Patch{}
	if cmd.Flags().Changed("label") {
		patch.Label = &entityLabel
	}
	if cmd.Flags().Changed("definition") {
		patch.Definition = &entityDefinition
	}
	if len(entityAttrs) > 0 {
		patch.Attributes = make(map[string]string, len(entityAttrs))
		for _, pair := range entityAttrs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --attr %q, expected key=value", pair)
			}
			patch.Attributes[key] = value
		}
	}

	e, err := a.review.Edit(cmd.Context(), args[0], patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "entity %s is now %s: %s\n", e.ID, e.Status, e.Label)
	return nil
}

func entityApprove(a *app, cmd *cobra.Command, args []string) error {
	e, err := a.review.ApproveNewClass(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "entity %s confirmed as new class\n", e.ID)
	return nil
}

func entityReassign(a *app, cmd *cobra.Command, args []string) error {
	e, err := a.review.ReassignClass(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "entity %s matched to %s\n", e.ID, e.MatchedClassURI)
	return nil
}

func entityDelete(a *app, cmd *cobra.Command, args []string) error {
	n, err := a.review.BulkDelete(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("deleted %d of %d: %w", n, len(args), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entities\n", n)
	return nil
}
