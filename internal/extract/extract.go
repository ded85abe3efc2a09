package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"capstan/internal/logging"
	"capstan/internal/services"
	"capstan/internal/smc"
)

// Modality names one extractable data category.
type Modality string

const (
	ModalityMetadata    Modality = "metadata"
	ModalityCalibration Modality = "calibration"
	ModalityImages      Modality = "images"
	ModalityMasks       Modality = "masks"
	ModalityAudio       Modality = "audio"
	ModalityKeypoints2d Modality = "keypoints2d"
	ModalityKeypoints3d Modality = "keypoints3d"
	ModalityFLAME       Modality = "flame"
	ModalityUVTextures  Modality = "uv_textures"
	ModalityScan        Modality = "scan"
	ModalityScanMasks   Modality = "scan_masks"
)

// ParseModality validates a configured modality name.
func ParseModality(name string) (Modality, error) {
	modality := Modality(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[modality]; !ok && modality != ModalityMetadata {
		return "", services.Wrap(services.ErrValidation, "extract", "modality",
			fmt.Sprintf("unknown modality %q", name), nil)
	}
	return modality, nil
}

// Selection narrows what an extractor pulls from the archive.
type Selection struct {
	// Cameras lists requested two-digit camera ids. Empty selects every
	// camera the archive captured.
	Cameras []string
	// Strides subsample per-frame numeric modalities.
	KeypointStride   int
	ParametricStride int
	TextureStride    int
}

// Request is the unit of work handed to one extractor.
type Request struct {
	Archive *smc.Archive
	// OutputDir is the variant subtree this pass writes into
	// ({subject}/{performance}/from_anno or .../from_raw).
	OutputDir string
	Selection Selection
	Logger    *slog.Logger
}

func (r Request) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

// Summary reports what one extraction pass did.
type Summary struct {
	Files            int
	Bytes            int64
	Skipped          int
	Frames           int
	CamerasExtracted int
	Errors           int
}

func (s *Summary) add(other Summary) {
	s.Files += other.Files
	s.Bytes += other.Bytes
	s.Skipped += other.Skipped
	s.Frames += other.Frames
	s.Errors += other.Errors
	if other.CamerasExtracted > s.CamerasExtracted {
		s.CamerasExtracted = other.CamerasExtracted
	}
}

// Func is one modality extractor.
type Func func(ctx context.Context, req Request) (Summary, error)

// registry is the typed dispatch table from modality to extractor. Metadata
// is absent on purpose: it is written once per task at the performance level,
// not per variant subtree.
var registry = map[Modality]Func{
	ModalityCalibration: Calibration,
	ModalityImages:      Images,
	ModalityMasks:       Masks,
	ModalityAudio:       Audio,
	ModalityKeypoints2d: Keypoints2d,
	ModalityKeypoints3d: Keypoints3d,
	ModalityFLAME:       FLAME,
	ModalityUVTextures:  UVTextures,
	ModalityScan:        Scan,
	ModalityScanMasks:   ScanMasks,
}

// Lookup returns the extractor for a modality, or ok=false for metadata and
// unknown names.
func Lookup(modality Modality) (Func, bool) {
	fn, ok := registry[modality]
	return fn, ok
}

// resolveCameras returns the cameras this pass should visit: the requested
// set, or every captured camera when the request does not narrow it. Ids
// requested but never captured stay in the result; extractors skip them with
// a logged reason so the gap is visible.
func resolveCameras(archive *smc.Archive, selection Selection) ([]string, error) {
	if len(selection.Cameras) > 0 {
		return selection.Cameras, nil
	}
	return archive.CameraIDs()
}

// strideFrames subsamples frame ids at a fixed stride, always keeping the
// first frame of the sequence.
func strideFrames(frames []int, stride int) []int {
	if stride <= 1 {
		return frames
	}
	sampled := make([]int, 0, len(frames)/stride+1)
	for i, frame := range frames {
		if i%stride == 0 {
			sampled = append(sampled, frame)
		}
	}
	return sampled
}
