package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"capstan/internal/config"
	"capstan/internal/logging"
	"capstan/internal/manifest"
	"capstan/internal/pipeline"
	"capstan/internal/preflight"
	"capstan/internal/services/rclone"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download and extract the configured subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, skipPreflight)
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip startup environment checks")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, skipPreflight bool) error {
	out := cmd.OutOrStdout()

	// Single-instance guard: concurrent runs would race on the staging
	// directories and the manifest.
	lockPath := filepath.Join(cfg.Paths.LogDir, "capstan.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another capstan run holds %s", lockPath)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if !skipPreflight {
		colorize := shouldColorize(out)
		for _, line := range renderSectionHeader("Preflight", colorize) {
			fmt.Fprintln(out, line)
		}
		failed := false
		for _, result := range preflight.RunAll(cfg) {
			kind := statusOK
			if !result.Passed {
				kind = statusError
				failed = true
			}
			fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
		}
		if failed {
			return errors.New("preflight checks failed; fix the environment or pass --skip-preflight")
		}
	}

	runID := uuid.NewString()[:8]
	logger, logPath, err := logging.NewForRun(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, runID)
	if err != nil {
		return err
	}
	if logPath != "" {
		fmt.Fprintf(out, "Logging to %s\n", logPath)
	}

	store, err := manifest.Open(cfg.Paths.ManifestPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, err := rclone.New(rclone.Options{
		Binary:       cfg.TransferBinary(),
		RemoteName:   cfg.Remote.RemoteName,
		RootFolderID: cfg.Remote.RootFolderID,
		Transfers:    cfg.Remote.Transfers,
		Checkers:     cfg.Remote.Checkers,
		MaxRetries:   cfg.Processing.MaxRetries,
		RetryDelay:   time.Duration(cfg.Processing.RetryDelaySeconds) * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	orch, err := pipeline.New(cfg, store, fetcher, logger, runID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s finished: %d completed, %d already done, %d failed, %d subjects skipped (%s extracted)\n",
		runID, summary.Completed, summary.AlreadyDone, summary.Failed, summary.SubjectsSkipped,
		formatBytes(summary.TotalBytes))
	return nil
}
