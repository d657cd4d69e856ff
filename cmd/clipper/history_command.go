package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/estimate"
	"clipper/internal/store"
	"clipper/internal/telegram"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				records, err := st.RecentJobs(cmd.Context(), userID, limit)
				if err != nil {
					return fmt.Errorf("load history: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No finished jobs")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					reason := string(rec.Reason)
					if reason == "" {
						reason = "-"
					}
					rows = append(rows, []string{
						rec.FinishedAt.Local().Format("2006-01-02 15:04"),
						fmt.Sprintf("%d", rec.UserID),
						telegram.StateTitle(rec.State),
						reason,
						rec.Preset,
						estimate.FormatOptionalMB(rec.SourceBytes),
						estimate.FormatOptionalMB(rec.FetchedBytes),
						estimate.FormatOptionalMB(rec.OutputBytes),
						rec.SourceURL,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Finished", "User", "State", "Reason", "Preset", "Source", "Fetched", "Output", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Only show jobs for this Telegram user id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	return cmd
}
