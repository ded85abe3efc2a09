package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"capstan/internal/config"
	"capstan/internal/logging"
	"capstan/internal/manifest"
	"capstan/internal/preflight"
	"capstan/internal/services"
	"capstan/internal/services/rclone"
)

// Orchestrator drives the per-task state machine over the configured
// subject and performance lists.
type Orchestrator struct {
	cfg     *config.Config
	store   *manifest.Store
	fetcher rclone.Fetcher
	logger  *slog.Logger
	runID   string
}

// New assembles an orchestrator. The manifest store must stay open for the
// orchestrator's lifetime; the orchestrator is its only writer.
func New(cfg *config.Config, store *manifest.Store, fetcher rclone.Fetcher, logger *slog.Logger, runID string) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if store == nil {
		return nil, errors.New("manifest store required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		runID:   runID,
	}, nil
}

// RunSummary aggregates what a run did.
type RunSummary struct {
	Subjects        int
	SubjectsSkipped int
	Completed       int
	AlreadyDone     int
	Failed          int
	TotalBytes      int64
}

// Run processes every configured subject sequentially. Within a subject,
// performances run sequentially; each task finishes before the next starts.
// Task failures are recorded and the run continues; only context
// cancellation stops it early.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	tasks, err := buildTasks(o.cfg)
	if err != nil {
		return summary, err
	}
	bySubject := make(map[string][]Task)
	for _, task := range tasks {
		bySubject[task.Subject] = append(bySubject[task.Subject], task)
	}

	for _, subject := range o.cfg.Extraction.Subjects {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Subjects++

		// Storage budget guard: once per subject, not per performance.
		check := preflight.CheckFreeSpace(o.cfg.Paths.WorkspaceDir, o.cfg.Processing.MinFreeSpaceGiB)
		if !check.Passed {
			summary.SubjectsSkipped++
			o.logger.Error("insufficient free space, skipping subject",
				logging.String(logging.FieldSubject, subject),
				logging.String("detail", check.Detail),
			)
			o.recordSubjectSkipped(ctx, bySubject[subject], check.Detail)
			continue
		}

		for _, task := range bySubject[subject] {
			outcome, err := o.runTask(ctx, task)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return summary, err
				}
				summary.Failed++
				continue
			}
			switch outcome.kind {
			case outcomeCompleted:
				summary.Completed++
				summary.TotalBytes += outcome.bytes
			case outcomeAlreadyDone:
				summary.AlreadyDone++
			}
		}
	}

	o.logger.Info("run finished",
		logging.Int("subjects", summary.Subjects),
		logging.Int("subjects_skipped", summary.SubjectsSkipped),
		logging.Int("completed", summary.Completed),
		logging.Int("already_done", summary.AlreadyDone),
		logging.Int("failed", summary.Failed),
		logging.Int64("bytes", summary.TotalBytes),
	)
	return summary, nil
}

// recordSubjectSkipped surfaces a storage skip in the manifest without
// clobbering rows from earlier successful runs.
func (o *Orchestrator) recordSubjectSkipped(ctx context.Context, tasks []Task, detail string) {
	for _, task := range tasks {
		row, err := o.store.Get(ctx, task.Subject, task.Performance)
		if err != nil {
			o.logger.Warn("manifest read failed while recording skip", logging.Error(err))
			continue
		}
		if row != nil && row.Status == manifest.StatusCompleted {
			continue
		}
		record := &manifest.Record{
			Subject:      task.Subject,
			Performance:  task.Performance,
			Status:       services.FailureStatus(services.ErrStorage),
			RunID:        o.runID,
			ErrorMessage: detail,
		}
		if err := o.store.Upsert(ctx, record); err != nil {
			o.logger.Warn("manifest write failed while recording skip", logging.Error(err))
		}
	}
}
