package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipper/internal/estimate"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List encoding presets and the longest video each fits under the upload limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			table, err := estimate.FromConfig(cfg)
			if err != nil {
				return err
			}
			ceiling := cfg.UploadCeilingBytes()
			def := table.Default()

			rows := make([][]string, 0, len(table.Presets()))
			for _, p := range table.Presets() {
				marker := ""
				if p.Name == def.Name {
					marker = "default"
				}
				rows = append(rows, []string{
					p.Name,
					strconv.Itoa(p.BitrateKbps),
					fmt.Sprintf("%.0f%%", p.Overhead*100),
					formatMinutes(maxMinutes(ceiling, p)),
					marker,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Upload limit: %s\n", estimate.FormatMB(ceiling))
			fmt.Fprintln(out, renderTable(
				[]string{"Preset", "Kbps", "Overhead", "Max length", ""},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

// maxMinutes is the longest duration whose estimate stays within ceiling.
func maxMinutes(ceiling int64, p estimate.Preset) float64 {
	perSecond := estimate.Bytes(1, p)
	if perSecond <= 0 {
		return 0
	}
	return float64(ceiling) / float64(perSecond) / 60
}

func formatMinutes(minutes float64) string {
	if minutes <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f min", minutes)
}
