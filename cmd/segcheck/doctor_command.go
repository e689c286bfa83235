package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"segcheck/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipServer bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, ffmpeg and server reachability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if !skipServer {
				results = append(results, preflight.CheckServer(cmd.Context(), ctx.serverAddr()))
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			writeRows(cmd.OutOrStdout(), []string{"Check", "OK", "Detail"}, rows, nil)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipServer, "no-server", false, "Skip the running server probe")
	return cmd
}
