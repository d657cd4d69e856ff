package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/estimate"
	"clipper/internal/job"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var (
		duration time.Duration
		preset   string
		sourceMB int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the encoded size of a video and show how a job would be routed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			table, err := estimate.FromConfig(cfg)
			if err != nil {
				return err
			}
			p := table.Default()
			if preset != "" {
				found, ok := table.Lookup(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q (see `clipper presets`)", preset)
				}
				p = found
			}

			var durationPtr *float64
			if duration > 0 {
				seconds := duration.Seconds()
				durationPtr = &seconds
			}
			var sourcePtr *int64
			if sourceMB > 0 {
				source := estimate.FromMB(sourceMB)
				sourcePtr = &source
			}
			est := estimate.Optional(durationPtr, p)
			ceiling := cfg.UploadCeilingBytes()
			decision := job.Decide(sourcePtr, est, ceiling)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Preset:           %s (%d kbps)\n", p.Name, p.BitrateKbps)
			fmt.Fprintf(out, "Estimated output: %s\n", estimate.FormatOptionalMB(est))
			fmt.Fprintf(out, "Upload limit:     %s\n", estimate.FormatMB(ceiling))
			if sourcePtr != nil {
				fmt.Fprintf(out, "Source size:      %s\n", estimate.FormatMB(*sourcePtr))
			}
			route := string(decision.State)
			if decision.Reason != job.ReasonNone {
				route += " (" + string(decision.Reason) + ")"
			}
			fmt.Fprintf(out, "Route:            %s\n", route)
			if decision.State == job.StateRejected {
				for _, cheaper := range table.Cheaper(p) {
					if e := estimate.Optional(durationPtr, cheaper); e != nil && *e <= ceiling {
						fmt.Fprintf(out, "Fits with:        %s (%s)\n", cheaper.Name, estimate.FormatMB(*e))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Video duration (for example 12m30s)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Preset name (defaults to encoding.default_preset)")
	cmd.Flags().IntVar(&sourceMB, "source-mb", 0, "Source size in MB; routing assumes a small source when omitted")
	return cmd
}
