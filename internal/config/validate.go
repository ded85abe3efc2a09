package config

import (
	"fmt"
	"strings"
)

// knownModalities is the closed set of modality names the pipeline can
// extract. Validation rejects anything else so a typo in the config fails at
// startup instead of silently extracting nothing.
var knownModalities = map[string]struct{}{
	"metadata":    {},
	"calibration": {},
	"images":      {},
	"masks":       {},
	"audio":       {},
	"keypoints2d": {},
	"keypoints3d": {},
	"flame":       {},
	"uv_textures": {},
	"scan":        {},
	"scan_masks":  {},
}

func (c *Config) normalize() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"workspace_dir", &c.Paths.WorkspaceDir},
		{"output_dir", &c.Paths.OutputDir},
		{"log_dir", &c.Paths.LogDir},
		{"manifest_path", &c.Paths.ManifestPath},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Remote.Binary = strings.TrimSpace(c.Remote.Binary)
	c.Remote.RemoteName = strings.TrimSpace(c.Remote.RemoteName)
	c.Remote.RootFolderID = strings.TrimSpace(c.Remote.RootFolderID)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if len(c.Extraction.Modalities) == 0 {
		c.Extraction.Modalities = append([]string(nil), DefaultModalities...)
	}
	for i, modality := range c.Extraction.Modalities {
		c.Extraction.Modalities[i] = strings.ToLower(strings.TrimSpace(modality))
	}

	if c.Remote.Transfers <= 0 {
		c.Remote.Transfers = defaultTransfers
	}
	if c.Remote.Checkers <= 0 {
		c.Remote.Checkers = defaultCheckers
	}
	if c.Extraction.KeypointStride <= 0 {
		c.Extraction.KeypointStride = defaultKeypointStride
	}
	if c.Extraction.ParametricStride <= 0 {
		c.Extraction.ParametricStride = defaultParametricStride
	}
	if c.Extraction.TextureStride <= 0 {
		c.Extraction.TextureStride = defaultTextureStride
	}
	if c.Processing.MaxRetries <= 0 {
		c.Processing.MaxRetries = defaultMaxRetries
	}
	if c.Processing.RetryDelaySeconds < 0 {
		c.Processing.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with. Failures here
// are the only errors that abort a run before any task starts.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.WorkspaceDir == "" {
		problems = append(problems, "paths.workspace_dir is required")
	}
	if c.Paths.OutputDir == "" {
		problems = append(problems, "paths.output_dir is required")
	}
	if c.Paths.ManifestPath == "" {
		problems = append(problems, "paths.manifest_path is required")
	}
	if c.Paths.WorkspaceDir != "" && c.Paths.WorkspaceDir == c.Paths.OutputDir {
		problems = append(problems, "paths.workspace_dir and paths.output_dir must differ")
	}

	for _, subject := range c.Extraction.Subjects {
		if strings.TrimSpace(subject) == "" {
			problems = append(problems, "extraction.subjects contains an empty id")
			break
		}
	}
	for _, modality := range c.Extraction.Modalities {
		if _, ok := knownModalities[modality]; !ok {
			problems = append(problems, fmt.Sprintf("extraction.modalities: unknown modality %q", modality))
		}
	}
	for _, id := range c.Extraction.CameraIDs {
		if id < 0 || id > 99 {
			problems = append(problems, fmt.Sprintf("extraction.camera_ids: camera %d outside supported range [0,99]", id))
		}
	}
	if c.Processing.MinFreeSpaceGiB < 0 {
		problems = append(problems, "processing.min_free_space_gib must not be negative")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
