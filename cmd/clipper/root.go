package main

import (
	"github.com/spf13/cobra"
)

const (
	groupBot   = "bot"
	groupAdmin = "admin"
	groupTools = "tools"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "clipper",
		Short:         "Telegram bot that re-encodes linked videos to fit the upload limit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupBot, Title: "Bot:"},
		&cobra.Group{ID: groupAdmin, Title: "Administration:"},
		&cobra.Group{ID: groupTools, Title: "Diagnostics:"},
	)
	grouped := []struct {
		group string
		cmd   *cobra.Command
	}{
		{groupBot, newRunCommand(ctx)},
		{groupBot, newTestNotifyCommand(ctx)},
		{groupAdmin, newUsersCommand(ctx)},
		{groupAdmin, newConfigCommand(ctx)},
		{groupAdmin, newHistoryCommand(ctx)},
		{groupTools, newPresetsCommand(ctx)},
		{groupTools, newEstimateCommand(ctx)},
		{groupTools, newDepsCommand(ctx)},
		{groupTools, newLogsCommand(ctx)},
	}
	for _, g := range grouped {
		g.cmd.GroupID = g.group
		rootCmd.AddCommand(g.cmd)
	}
	return rootCmd
}
