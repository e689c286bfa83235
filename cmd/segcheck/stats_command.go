package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"segcheck/internal/client"
	"segcheck/internal/config"
	"segcheck/internal/segment"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show annotation progress counts",
		Long: "Fetches counts from the running server, including live lock counts.\n" +
			"With --offline the database is read directly and lock counts are omitted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stats map[string]int
			if offline {
				err := ctx.withStore(func(_ *config.Config, store *segment.Store) error {
					var err error
					stats, err = store.Stats(cmd.Context())
					return err
				})
				if err != nil {
					return err
				}
			} else {
				addr := ctx.serverAddr()
				var err error
				stats, err = client.FetchStats(cmd.Context(), addr)
				if err != nil {
					return wrapDialError(err, addr)
				}
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			writeCounts(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Read the database directly instead of asking the server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List connected sessions and held locks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := ctx.serverAddr()
			status, err := client.FetchStatus(cmd.Context(), addr)
			if err != nil {
				return wrapDialError(err, addr)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connections: %d\n", status.Connections)
			fmt.Fprintf(out, "Sessions: %d\n", len(status.Sessions))
			if len(status.Sessions) > 0 {
				rows := make([][]string, 0, len(status.Sessions))
				for _, s := range status.Sessions {
					rows = append(rows, []string{s.ID, dash(s.User), dash(s.Held), formatAge(s.LastSeen)})
				}
				writeRows(out, []string{"Session", "User", "Holding", "Last seen"}, rows, nil)
			}
			fmt.Fprintf(out, "Locks: %d\n", len(status.Locks))
			if len(status.Locks) > 0 {
				rows := make([][]string, 0, len(status.Locks))
				for _, l := range status.Locks {
					rows = append(rows, []string{l.SegmentID, dash(l.User), l.Holder, formatAge(l.AcquiredAt)})
				}
				writeRows(out, []string{"Segment", "User", "Session", "Held for"}, rows, nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAge(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return time.Since(ts).Round(time.Second).String()
}
