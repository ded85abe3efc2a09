package config

const (
	defaultWorkspaceDir      = "~/.local/share/capstan/workspace"
	defaultOutputDir         = "~/capstan/subjects"
	defaultLogDir            = "~/.local/share/capstan/logs"
	defaultManifestPath      = "~/.local/share/capstan/manifest.db"
	defaultRemoteBinary      = "rclone"
	defaultTransfers         = 4
	defaultCheckers          = 8
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultKeypointStride    = 10
	defaultParametricStride  = 5
	defaultTextureStride     = 30
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 30
	defaultMinFreeSpaceGiB   = 100
)

// DefaultModalities is the full modality set extracted when the config does
// not narrow the selection.
var DefaultModalities = []string{
	"metadata",
	"calibration",
	"images",
	"masks",
	"audio",
	"keypoints2d",
	"keypoints3d",
	"flame",
	"uv_textures",
	"scan",
	"scan_masks",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			ManifestPath: defaultManifestPath,
		},
		Remote: Remote{
			Binary:    defaultRemoteBinary,
			Transfers: defaultTransfers,
			Checkers:  defaultCheckers,
		},
		Extraction: Extraction{
			Modalities:       append([]string(nil), DefaultModalities...),
			KeypointStride:   defaultKeypointStride,
			ParametricStride: defaultParametricStride,
			TextureStride:    defaultTextureStride,
		},
		Processing: Processing{
			DeleteArchivesAfterExtract: true,
			MaxRetries:                 defaultMaxRetries,
			RetryDelaySeconds:          defaultRetryDelaySeconds,
			MinFreeSpaceGiB:            defaultMinFreeSpaceGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
