// cmd/dialogue-engine/actions.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dialogue-engine/pkg/registry"
)

// newActionsCmd inspects the action catalogue without touching any backend.
func newActionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Inspect the action catalogue",
	}
	cmd.AddCommand(newActionsListCmd(), newActionsValidateCmd())
	return cmd
}

func newActionsListCmd() *cobra.Command {
	var (
		overridePath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions with their required arguments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := registry.Load(overridePath)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cat)
			}
			printCatalogue(cmd.OutOrStdout(), cat)
			return nil
		},
	}

	cmd.Flags().StringVarP(&overridePath, "path", "p", "", "Catalogue override file to apply")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalogue as JSON")
	return cmd
}

func newActionsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <override-file>",
		Short: "Check that a catalogue override file applies cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.Load(args[0])
			if err != nil {
				return fmt.Errorf("catalogue validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalogue validation passed (version %s, %d actions).\n", cat.Version, len(cat.Actions))
			return nil
		},
	}
}

func printCatalogue(out io.Writer, cat *registry.Catalogue) {
	fmt.Fprintf(out, "catalogue version %s\n\n", cat.Version)
	for _, a := range cat.Actions {
		required := append([]string(nil), a.Parameters.Required...)
		sort.Strings(required)
		args := "-"
		if len(required) > 0 {
			args = strings.Join(required, ", ")
		}
		fmt.Fprintf(out, "%-20s %-10s %s\n", a.Name, a.Category, args)
	}
}
