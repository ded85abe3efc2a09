package pipeline

import (
	"fmt"
	"path/filepath"

	"capstan/internal/config"
	"capstan/internal/extract"
	"capstan/internal/smc"
)

// Variant names the two archive sources covering one performance.
type Variant string

const (
	VariantAnno Variant = "anno"
	VariantRaw  Variant = "raw"
)

// Subtree returns the disjoint output subtree this variant writes into.
// Anno and raw passes are never merged.
func (v Variant) Subtree() string { return "from_" + string(v) }

// Task is one (subject, performance) unit of orchestration work.
type Task struct {
	Subject     string
	Performance string
	Cameras     []string
	Modalities  []extract.Modality
	Selection   extract.Selection
}

// ArchiveName renders the container file name for one variant.
func (t Task) ArchiveName(variant Variant) string {
	return fmt.Sprintf("%s_%s_%s.smc", t.Subject, t.Performance, variant)
}

// RemotePath renders the object-store layout {variant}/{subject}/{file}.
func (t Task) RemotePath(variant Variant) string {
	return fmt.Sprintf("%s/%s/%s", variant, t.Subject, t.ArchiveName(variant))
}

// OutputDir is the performance-level output directory.
func (t Task) OutputDir(outputRoot string) string {
	return filepath.Join(outputRoot, t.Subject, t.Performance)
}

// MarkerPath is the durable completion sentinel for this task.
func (t Task) MarkerPath(outputRoot string) string {
	return filepath.Join(t.OutputDir(outputRoot), ".extraction_complete")
}

// StagingDir is where this task's archive copies land locally.
func (t Task) StagingDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, t.Subject)
}

// wantsModality reports whether the task selected a modality.
func (t Task) wantsModality(modality extract.Modality) bool {
	for _, m := range t.Modalities {
		if m == modality {
			return true
		}
	}
	return false
}

// buildTasks expands the configuration into the ordered task list.
func buildTasks(cfg *config.Config) ([]Task, error) {
	cameras := make([]string, 0, len(cfg.Extraction.CameraIDs))
	for _, id := range cfg.Extraction.CameraIDs {
		cameras = append(cameras, smc.FormatCameraID(id))
	}

	modalities := make([]extract.Modality, 0, len(cfg.Extraction.Modalities))
	for _, name := range cfg.Extraction.Modalities {
		modality, err := extract.ParseModality(name)
		if err != nil {
			return nil, err
		}
		modalities = append(modalities, modality)
	}

	selection := extract.Selection{
		Cameras:          cameras,
		KeypointStride:   cfg.Extraction.KeypointStride,
		ParametricStride: cfg.Extraction.ParametricStride,
		TextureStride:    cfg.Extraction.TextureStride,
	}

	var tasks []Task
	for _, subject := range cfg.Extraction.Subjects {
		for _, performance := range cfg.Extraction.Performances {
			tasks = append(tasks, Task{
				Subject:     subject,
				Performance: performance,
				Cameras:     cameras,
				Modalities:  modalities,
				Selection:   selection,
			})
		}
	}
	return tasks, nil
}
