package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/inspect"
)

func inspectCmd() *cobra.Command {
	var owlPath, dbPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize an OWL output or SemanticSQL database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary any
			switch {
			case owlPath != "" && dbPath != "":
				return errs.WrapConfig(fmt.Errorf("%w: --owl and --db", errs.ErrConflictingOptions), "cli", "inspect")
			case owlPath != "":
				s, err := inspect.SummarizeOWLFile(owlPath)
				if err != nil {
					return err
				}
				summary = s
			case dbPath != "":
				s, err := inspect.SummarizeDB(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				summary = s
			default:
				return errs.WrapConfig(fmt.Errorf("%w: --owl or --db is required", errs.ErrMissingInput), "cli", "inspect")
			}

			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal summary: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().StringVar(&owlPath, "owl", "", "OWL (RDF/XML) file to summarize")
	cmd.Flags().StringVar(&dbPath, "db", "", "SemanticSQL database to summarize")
	return cmd
}
