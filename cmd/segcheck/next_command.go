package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"segcheck/internal/client"
	"segcheck/internal/protocol"
)

func newNextCommand(ctx *commandContext) *cobra.Command {
	var (
		user      string
		statuses  []string
		index     string
		step      int
		currID    string
		contextMS int64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Request the next eligible segment, as an annotator client would",
		Long: "Connects to the running server, requests one segment and prints it.\n" +
			"The lock is released when the command exits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := ctx.serverAddr()
			c, err := client.Dial(cmd.Context(), addr, "")
			if err != nil {
				return wrapDialError(err, addr)
			}
			defer c.Close()

			query := protocol.Query{
				UserName:      strings.TrimSpace(user),
				StepSize:      step,
				RequestIndex:  strings.TrimSpace(index),
				RequestStatus: protocol.StatusFilter(statuses),
				CurrID:        strings.TrimSpace(currID),
			}
			if cmd.Flags().Changed("context") {
				query.Context = &contextMS
			}

			seg, ok, err := c.Next(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				if asJSON {
					return writeJSON(out, nil)
				}
				fmt.Fprintln(out, "No eligible segment")
				return nil
			}
			if asJSON {
				seg.Audio = ""
				return writeJSON(out, seg)
			}

			rows := [][]string{
				{"ID", seg.ID},
				{"Index", fmt.Sprintf("%d", seg.Index)},
				{"Type", seg.SegmentType},
				{"Status", dash(seg.CurrentStatus.Name)},
				{"Labels", dash(strings.Join(seg.Labels, ", "))},
				{"Chunk", fmt.Sprintf("%d-%d ms", seg.Chunk.Start, seg.Chunk.End)},
				{"Offset", fmt.Sprintf("%d ms", seg.Offset)},
				{"Audio", fmt.Sprintf("%s, %d bytes", seg.FileType, base64.StdEncoding.DecodedLen(len(seg.Audio)))},
			}
			writeRows(out, []string{"Field", "Value"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Annotator user name")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Requested statuses (unchecked, checked, any, skip, \"bad sample\", ...)")
	cmd.Flags().StringVar(&index, "index", "", "Jump to a 1-based position, \"first\" or \"last\"")
	cmd.Flags().IntVar(&step, "step", 1, "Walk direction and stride")
	cmd.Flags().StringVar(&currID, "from", "", "Walk from this segment id")
	cmd.Flags().Int64Var(&contextMS, "context", 0, "Audio context on each side, in milliseconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON (audio omitted)")
	return cmd
}
