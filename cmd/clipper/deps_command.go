package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/deps"
	"clipper/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			statuses := deps.CheckBinaries(deps.Requirements(cfg))

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range statuses {
				kind := statusOK
				message := status.Path
				if !status.Available {
					kind = statusMissing
					if status.Optional {
						kind = statusWarn
					}
					message = status.Detail
				}
				if status.Description != "" {
					message += " (" + status.Description + ")"
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			checks := preflight.RunAll(cmd.Context(), cfg)
			if online {
				checks = append(checks, preflight.CheckTelegram(cfg))
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, check := range checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return preflight.Failed(checks)
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "Also verify the bot token against the Telegram Bot API")
	return cmd
}
