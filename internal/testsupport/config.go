package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"capstan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ManifestPath = filepath.Join(base, "manifest.db")
	cfgVal.Extraction.Subjects = []string{"0026"}
	cfgVal.Extraction.Performances = []string{"s1_all"}
	cfgVal.Processing.MinFreeSpaceGiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return builder.cfg
}

// WithSubjects overrides the subject list on the test config.
func WithSubjects(subjects ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.Subjects = subjects
	}
}

// WithPerformances overrides the performance list on the test config.
func WithPerformances(performances ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.Performances = performances
	}
}

// WithModalities overrides the modality list on the test config.
func WithModalities(modalities ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.Modalities = modalities
	}
}

// WithCameras overrides the camera selection on the test config.
func WithCameras(ids ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.CameraIDs = ids
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default capstan external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rclone"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
