package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	ManifestPath string `toml:"manifest_path"`
}

// Remote contains configuration for the external transfer command.
type Remote struct {
	Binary       string `toml:"binary"`
	RemoteName   string `toml:"remote_name"`
	RootFolderID string `toml:"root_folder_id"`
	Transfers    int    `toml:"transfers"`
	Checkers     int    `toml:"checkers"`
}

// Extraction declares which units of the dataset to extract and how.
type Extraction struct {
	Subjects     []string `toml:"subjects"`
	Performances []string `toml:"performances"`
	// CameraIDs selects specific cameras; an empty list extracts every
	// camera the archive declares.
	CameraIDs  []int    `toml:"camera_ids"`
	Modalities []string `toml:"modalities"`
	// Strides bound output volume for per-frame numeric modalities.
	KeypointStride   int `toml:"keypoint_stride"`
	ParametricStride int `toml:"parametric_stride"`
	TextureStride    int `toml:"texture_stride"`
}

// Processing contains pipeline policy knobs.
type Processing struct {
	DeleteArchivesAfterExtract bool `toml:"delete_archives_after_extract"`
	ForceReextract             bool `toml:"force_reextract"`
	MaxRetries                 int  `toml:"max_retries"`
	RetryDelaySeconds          int  `toml:"retry_delay_seconds"`
	MinFreeSpaceGiB            int  `toml:"min_free_space_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for capstan.
//
// Sections by subsystem:
//   - Paths: workspace (archive staging), output tree, logs, manifest
//   - Remote: rclone remote and transfer tuning
//   - Extraction: subjects, performances, camera and modality selection
//   - Processing: cleanup, resume, retry, and free-space policy
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Remote     Remote     `toml:"remote"`
	Extraction Extraction `toml:"extraction"`
	Processing Processing `toml:"processing"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/capstan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("capstan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkspaceDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Paths.ManifestPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.ManifestPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TransferBinary returns the external copy executable name.
func (c *Config) TransferBinary() string {
	if strings.TrimSpace(c.Remote.Binary) != "" {
		return c.Remote.Binary
	}
	return "rclone"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
