package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"capstan/internal/extract"
	"capstan/internal/logging"
	"capstan/internal/manifest"
	"capstan/internal/services"
	"capstan/internal/smc"
)

type outcomeKind int

const (
	outcomeCompleted outcomeKind = iota
	outcomeAlreadyDone
)

type taskOutcome struct {
	kind  outcomeKind
	bytes int64
}

// completionMarker is the persisted shape of the .extraction_complete
// sentinel.
type completionMarker struct {
	Subject          string    `json:"subject"`
	Performance      string    `json:"performance"`
	CompletedAt      time.Time `json:"completed_at"`
	CamerasExtracted int       `json:"cameras_extracted"`
	Frames           int       `json:"frames"`
	TotalBytes       int64     `json:"total_bytes"`
	AnnoBytes        int64     `json:"anno_bytes"`
	RawBytes         int64     `json:"raw_bytes"`
}

// openedArchive pairs an open handle with its variant and local path.
type openedArchive struct {
	variant   Variant
	archive   *smc.Archive
	localPath string
}

// runTask drives one task through the state machine:
// queued -> downloading -> extracting -> verifying -> completed, with
// failed/download_failed as terminal failure states.
func (o *Orchestrator) runTask(ctx context.Context, task Task) (taskOutcome, error) {
	ctx = logging.WithTask(ctx, logging.TaskContext{
		RunID:       o.runID,
		Subject:     task.Subject,
		Performance: task.Performance,
	})
	logger := logging.WithContext(ctx, o.logger)

	// Queued: a durable terminal signal short-circuits the task.
	if !o.cfg.Processing.ForceReextract {
		done, err := o.alreadyComplete(ctx, task)
		if err != nil {
			return taskOutcome{}, err
		}
		if done {
			logger.Info("task already complete, skipping")
			return taskOutcome{kind: outcomeAlreadyDone}, nil
		}
	}

	// Downloading.
	archives, err := o.download(ctx, task, logger)
	if err != nil {
		o.recordFailure(ctx, task, err, logger)
		return taskOutcome{}, err
	}
	defer func() {
		for _, opened := range archives {
			_ = opened.archive.Close()
		}
	}()

	// Extracting: best-effort per modality, never all-or-nothing.
	result, err := o.extractAll(ctx, task, archives, logger)
	if err != nil {
		// Only context cancellation exits the extracting state early.
		o.recordFailure(ctx, task, err, logger)
		return taskOutcome{}, err
	}

	// Verifying.
	record, err := o.verify(ctx, task, result, logger)
	if err != nil {
		o.recordFailure(ctx, task, err, logger)
		return taskOutcome{}, err
	}

	o.cleanup(task, archives, logger)
	return taskOutcome{kind: outcomeCompleted, bytes: record.TotalBytes}, nil
}

// alreadyComplete consults the manifest row and the completion marker.
// Either one marks the task done; a marker without a row backfills the row.
func (o *Orchestrator) alreadyComplete(ctx context.Context, task Task) (bool, error) {
	row, err := o.store.Get(ctx, task.Subject, task.Performance)
	if err != nil {
		return false, err
	}
	if row != nil && row.Status == manifest.StatusCompleted {
		return true, nil
	}

	markerPath := task.MarkerPath(o.cfg.Paths.OutputDir)
	data, err := os.ReadFile(markerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read completion marker: %w", err)
	}
	var marker completionMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		// A corrupt marker is treated as absent; the task re-runs and
		// rewrites it.
		return false, nil
	}
	record := &manifest.Record{
		Subject:          task.Subject,
		Performance:      task.Performance,
		Status:           manifest.StatusCompleted,
		CamerasExtracted: marker.CamerasExtracted,
		Frames:           marker.Frames,
		TotalBytes:       marker.TotalBytes,
		AnnoBytes:        marker.AnnoBytes,
		RawBytes:         marker.RawBytes,
		RunID:            o.runID,
	}
	if err := o.store.Upsert(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// download fetches the anno and raw archives independently. The task
// proceeds when at least one is obtained; neither means download_failed.
func (o *Orchestrator) download(ctx context.Context, task Task, logger *slog.Logger) ([]openedArchive, error) {
	if err := o.updateStatus(ctx, task, manifest.StatusDownloading, ""); err != nil {
		return nil, err
	}

	stagingDir := task.StagingDir(o.cfg.Paths.WorkspaceDir)
	var archives []openedArchive
	var lastErr error

	for _, variant := range []Variant{VariantAnno, VariantRaw} {
		if err := ctx.Err(); err != nil {
			return closeAll(archives), err
		}

		localPath := filepath.Join(stagingDir, task.ArchiveName(variant))
		if _, err := os.Stat(localPath); err != nil {
			localPath, err = o.fetcher.Fetch(ctx, task.RemotePath(variant), stagingDir)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return closeAll(archives), err
				}
				lastErr = err
				logger.Warn("variant download failed",
					logging.String(logging.FieldVariant, string(variant)),
					logging.Error(err),
				)
				continue
			}
		} else {
			logger.Debug("reusing local archive copy",
				logging.String(logging.FieldVariant, string(variant)))
		}

		archive, err := smc.Open(localPath)
		if err != nil {
			if errors.Is(err, services.ErrFormat) {
				return closeAll(archives), err
			}
			lastErr = err
			logger.Warn("archive open failed",
				logging.String(logging.FieldVariant, string(variant)),
				logging.Error(err),
			)
			continue
		}
		archives = append(archives, openedArchive{
			variant:   variant,
			archive:   archive,
			localPath: localPath,
		})
	}

	if len(archives) == 0 {
		return nil, services.Wrap(services.ErrTransfer, "downloading", "fetch",
			"no archive variant obtained", lastErr)
	}
	return archives, nil
}

func closeAll(archives []openedArchive) []openedArchive {
	for _, opened := range archives {
		_ = opened.archive.Close()
	}
	return nil
}

// extractResult carries what extraction learned for the verify stage.
type extractResult struct {
	camerasExtracted int
	frames           int
	errors           int
}

// extractAll runs the selected extractors against every present variant.
// Each variant writes to its own disjoint subtree; a single extractor's
// failure is logged and the remaining modalities still run.
func (o *Orchestrator) extractAll(ctx context.Context, task Task, archives []openedArchive, logger *slog.Logger) (extractResult, error) {
	var result extractResult
	if err := o.updateStatus(ctx, task, manifest.StatusExtracting, ""); err != nil {
		return result, err
	}

	performanceDir := task.OutputDir(o.cfg.Paths.OutputDir)

	if task.wantsModality(extract.ModalityMetadata) {
		summary, err := extract.WriteMetadata(archives[0].archive, filepath.Join(performanceDir, "metadata"))
		if err != nil {
			logger.Warn("metadata extraction failed, continuing",
				logging.String(logging.FieldModality, string(extract.ModalityMetadata)),
				logging.Error(err),
			)
			result.errors++
		} else {
			result.frames = summary.Frames
		}
	}

	for _, opened := range archives {
		variantLogger := logger.With(logging.String(logging.FieldVariant, string(opened.variant)))
		request := extract.Request{
			Archive:   opened.archive,
			OutputDir: filepath.Join(performanceDir, opened.variant.Subtree()),
			Selection: task.Selection,
			Logger:    variantLogger,
		}

		for _, modality := range task.Modalities {
			if modality == extract.ModalityMetadata {
				continue
			}
			fn, ok := extract.Lookup(modality)
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			summary, err := fn(ctx, request)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return result, err
				}
				result.errors++
				variantLogger.Warn("modality extraction failed, continuing",
					logging.String(logging.FieldModality, string(modality)),
					logging.Error(services.Wrap(services.ErrExtraction, "extracting", string(modality), "", err)),
				)
				continue
			}
			result.errors += summary.Errors
			if summary.CamerasExtracted > result.camerasExtracted {
				result.camerasExtracted = summary.CamerasExtracted
			}
			variantLogger.Info("modality extracted",
				logging.String(logging.FieldModality, string(modality)),
				logging.Int("files", summary.Files),
				logging.Int("skipped", summary.Skipped),
				logging.Int64("bytes", summary.Bytes),
			)
		}
		if result.frames == 0 {
			result.frames = opened.archive.CameraInfo().NumFrame
		}
	}
	return result, nil
}

// verify sizes the output tree, writes the completion marker, and persists
// the terminal manifest row. The marker is written before the row so a crash
// between the two is recovered by the marker backfill on the next run.
func (o *Orchestrator) verify(ctx context.Context, task Task, result extractResult, logger *slog.Logger) (*manifest.Record, error) {
	if err := o.updateStatus(ctx, task, manifest.StatusVerifying, ""); err != nil {
		return nil, err
	}

	performanceDir := task.OutputDir(o.cfg.Paths.OutputDir)
	annoBytes, err := extract.TreeSize(filepath.Join(performanceDir, VariantAnno.Subtree()))
	if err != nil {
		return nil, err
	}
	rawBytes, err := extract.TreeSize(filepath.Join(performanceDir, VariantRaw.Subtree()))
	if err != nil {
		return nil, err
	}
	totalBytes, err := extract.TreeSize(performanceDir)
	if err != nil {
		return nil, err
	}

	marker := completionMarker{
		Subject:          task.Subject,
		Performance:      task.Performance,
		CompletedAt:      time.Now().UTC(),
		CamerasExtracted: result.camerasExtracted,
		Frames:           result.frames,
		TotalBytes:       totalBytes,
		AnnoBytes:        annoBytes,
		RawBytes:         rawBytes,
	}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal completion marker: %w", err)
	}
	if err := os.MkdirAll(performanceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(task.MarkerPath(o.cfg.Paths.OutputDir), data, 0o644); err != nil {
		return nil, fmt.Errorf("write completion marker: %w", err)
	}

	record := &manifest.Record{
		Subject:          task.Subject,
		Performance:      task.Performance,
		Status:           manifest.StatusCompleted,
		CamerasExtracted: result.camerasExtracted,
		Frames:           result.frames,
		TotalBytes:       totalBytes,
		AnnoBytes:        annoBytes,
		RawBytes:         rawBytes,
		RunID:            o.runID,
	}
	if err := o.store.Upsert(ctx, record); err != nil {
		return nil, err
	}
	logger.Info("task completed",
		logging.Int("cameras_extracted", record.CamerasExtracted),
		logging.Int("frames", record.Frames),
		logging.Int64("bytes", record.TotalBytes),
		logging.Int("extraction_errors", result.errors),
	)
	return record, nil
}

// cleanup reclaims the local archive copies once the task is durably
// complete, when configured to.
func (o *Orchestrator) cleanup(task Task, archives []openedArchive, logger *slog.Logger) {
	if !o.cfg.Processing.DeleteArchivesAfterExtract {
		return
	}
	for _, opened := range archives {
		if err := os.Remove(opened.localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("archive cleanup failed",
				logging.String(logging.FieldVariant, string(opened.variant)),
				logging.Error(err),
			)
			continue
		}
		logger.Debug("local archive copy removed",
			logging.String(logging.FieldVariant, string(opened.variant)))
	}
	// Drop the per-subject staging dir when it emptied out.
	_ = os.Remove(task.StagingDir(o.cfg.Paths.WorkspaceDir))
}

func (o *Orchestrator) updateStatus(ctx context.Context, task Task, status manifest.Status, errText string) error {
	record, err := o.store.Get(ctx, task.Subject, task.Performance)
	if err != nil {
		return err
	}
	if record == nil {
		record = &manifest.Record{Subject: task.Subject, Performance: task.Performance}
	}
	record.Status = status
	record.RunID = o.runID
	record.ErrorMessage = errText
	return o.store.Upsert(ctx, record)
}

// recordFailure persists the terminal failure row. Cancellation is not a
// failure: the row keeps its last in-progress status so the next run
// resumes the task.
func (o *Orchestrator) recordFailure(ctx context.Context, task Task, taskErr error, logger *slog.Logger) {
	if errors.Is(taskErr, context.Canceled) || errors.Is(taskErr, context.DeadlineExceeded) {
		return
	}
	status := services.FailureStatus(taskErr)
	logger.Error("task failed",
		logging.String("status", string(status)),
		logging.Error(taskErr),
	)
	// Use a fresh context: the task context may already be canceled.
	if err := o.updateStatus(context.Background(), task, status, taskErr.Error()); err != nil {
		logger.Warn("manifest write failed while recording failure", logging.Error(err))
	}
}
