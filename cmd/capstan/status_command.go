package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"capstan/internal/config"
	"capstan/internal/manifest"
	"capstan/internal/preflight"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment health and extraction progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, store *manifest.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Environment", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, result := range preflight.RunAll(cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				fmt.Fprintln(out)

				stats, err := store.Aggregate(cmd.Context())
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Extraction", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Performances", statusInfo, fmt.Sprintf("%d tracked", stats.Total), colorize))
				fmt.Fprintln(out, renderStatusLine("Completed", statusOK, fmt.Sprintf("%d (%s)", stats.Completed, formatBytes(stats.TotalBytes)), colorize))
				failKind := statusOK
				if stats.Failed+stats.DownloadFailed > 0 {
					failKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Failed", failKind, fmt.Sprintf("%d extraction, %d download", stats.Failed, stats.DownloadFailed), colorize))
				if stats.InProgress > 0 {
					fmt.Fprintln(out, renderStatusLine("In progress", statusWarn, fmt.Sprintf("%d (interrupted runs resume from here)", stats.InProgress), colorize))
				}
				return nil
			})
		},
	}
}
