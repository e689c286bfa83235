package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"segcheck/internal/config"
	"segcheck/internal/segment"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import source segments (and existing annotations) into the database",
		Long: "Reads *.json segment files from <dir>/source (or <dir> itself) and, when\n" +
			"present, annotation files from <dir>/annotation. Duplicate ids are rejected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *segment.Store) error {
				result, err := store.ImportDir(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d segments and %d annotations into %s\n",
					result.Segments, result.Annotations, store.Path())
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write one annotation JSON file per annotated segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *segment.Store) error {
				written, err := store.Export(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("export %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d annotations to %s\n", written, args[0])
				return nil
			})
		},
	}
}
