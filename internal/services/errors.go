package services

import (
	"errors"
	"fmt"
	"strings"

	"capstan/internal/manifest"
)

var (
	// ErrFormat marks an archive missing required top-level metadata. Fatal
	// to the task that hit it.
	ErrFormat = errors.New("archive format error")
	// ErrNotFound marks a requested camera/frame/modality that is absent.
	// Recoverable: callers skip and continue.
	ErrNotFound = errors.New("not found")
	// ErrTransfer marks a download that failed after exhausting retries.
	ErrTransfer = errors.New("transfer error")
	// ErrStorage marks insufficient free space on the workspace volume.
	ErrStorage = errors.New("storage error")
	// ErrExtraction marks a single modality/frame/camera extraction step
	// that failed. Caught per step; the task continues.
	ErrExtraction = errors.New("extraction error")
	// ErrValidation marks a structurally invalid request (malformed camera
	// id, out-of-range frame id). Fatal to the caller.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks invalid configuration. The only globally fatal
	// class: it aborts the run before any task starts.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExtraction
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a task error to the manifest status the orchestrator
// should persist after the task fails.
func FailureStatus(err error) manifest.Status {
	switch {
	case errors.Is(err, ErrTransfer):
		return manifest.StatusDownloadFailed
	case errors.Is(err, ErrStorage):
		return manifest.StatusSkipped
	default:
		return manifest.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
