package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"segcheck/internal/client"
)

func newUnlockAllCommand(ctx *commandContext) *cobra.Command {
	var user string
	var token string
	cmd := &cobra.Command{
		Use:   "unlock-all",
		Short: "Release every segment lock on the running server",
		Long: "Releases all locks and notifies connected annotators. The token defaults\n" +
			"to server.operator_token from the configuration.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(token) == "" {
				if cfg, err := ctx.ensureConfig(); err == nil && cfg != nil {
					token = cfg.Server.OperatorToken
				}
			}
			addr := ctx.serverAddr()
			resp, err := client.UnlockAll(cmd.Context(), addr, user, token)
			if err != nil {
				return wrapDialError(err, addr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp.Info)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Name recorded as the requester")
	cmd.Flags().StringVar(&token, "token", "", "Operator bearer token")
	return cmd
}
