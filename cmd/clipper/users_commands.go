package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipper/internal/daemonrun"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the whitelist",
	}

	usersCmd.AddCommand(&cobra.Command{
		Use:   "add <user-id>...",
		Short: "Whitelist Telegram users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUserIDs(args)
			if err != nil {
				return err
			}
			return ctx.withDirectory(cmd.Context(), func(dir daemonrun.Directory) error {
				for _, id := range ids {
					if err := dir.AddUser(cmd.Context(), id); err != nil {
						return fmt.Errorf("add user %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Whitelisted %d\n", id)
				}
				return nil
			})
		},
	})

	usersCmd.AddCommand(&cobra.Command{
		Use:   "remove <user-id>...",
		Short: "Remove Telegram users from the whitelist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUserIDs(args)
			if err != nil {
				return err
			}
			return ctx.withDirectory(cmd.Context(), func(dir daemonrun.Directory) error {
				for _, id := range ids {
					removed, err := dir.RemoveUser(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("remove user %d: %w", id, err)
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "User %d was not whitelisted\n", id)
					}
				}
				return nil
			})
		},
	})

	usersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List whitelisted users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDirectory(cmd.Context(), func(dir daemonrun.Directory) error {
				users, err := dir.ListUsers(cmd.Context())
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No whitelisted users")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, user := range users {
					added := "-"
					if !user.CreatedAt.IsZero() {
						added = user.CreatedAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{strconv.FormatInt(user.ID, 10), yesNo(user.Whitelisted), added})
				}
				fmt.Fprintln(out, renderTable([]string{"User ID", "Whitelisted", "Added"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	})

	return usersCmd
}

func parseUserIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseUserID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
