package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"capstan/internal/config"
	"capstan/internal/manifest"
)

func newManifestCommand(cmdCtx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and export the extraction manifest",
	}

	manifestCmd.AddCommand(newManifestListCommand(cmdCtx))
	manifestCmd.AddCommand(newManifestExportCommand(cmdCtx))

	return manifestCmd
}

func newManifestListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manifest rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(_ *config.Config, store *manifest.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					if statusFilter != "" && string(record.Status) != statusFilter {
						continue
					}
					updated := ""
					if !record.UpdatedAt.IsZero() {
						updated = record.UpdatedAt.Local().Format(time.DateTime)
					}
					rows = append(rows, []string{
						record.Subject,
						record.Performance,
						string(record.Status),
						fmt.Sprintf("%d", record.CamerasExtracted),
						fmt.Sprintf("%d", record.Frames),
						fmt.Sprintf("%.2f", record.SizeGB()),
						updated,
					})
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No manifest rows match.")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Subject", "Performance", "Status", "Cameras", "Frames", "Size (GB)", "Updated"},
					rows,
					3, 4, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show rows with this status")
	return cmd
}

func newManifestExportCommand(cmdCtx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the manifest as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(_ *config.Config, store *manifest.Store) error {
				if outputPath == "" {
					return store.ExportCSV(cmd.Context(), cmd.OutOrStdout())
				}
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := store.ExportCSV(cmd.Context(), file); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest export to %s\n", outputPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write CSV to this file instead of stdout")
	return cmd
}
