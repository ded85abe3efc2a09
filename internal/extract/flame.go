package extract

import (
	"context"
	"fmt"
	"path/filepath"

	"capstan/internal/logging"
)

// FLAME materializes sampled parametric-model frames as flame/all_frames.npz.
// Only expression-type performances carry model fits; a gated-off archive is
// a logged skip.
func FLAME(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	dest := filepath.Join(req.OutputDir, "flame", "all_frames.npz")
	if destExists(dest) {
		summary.Skipped++
		return summary, nil
	}

	frames, err := req.Archive.FLAMEFrames()
	if err != nil {
		return summary, err
	}
	if len(frames) == 0 {
		logger.Debug("archive carries no parametric-model data, skipping",
			logging.String(logging.FieldModality, string(ModalityFLAME)))
		return summary, nil
	}

	sampled := strideFrames(frames, req.Selection.ParametricStride)
	var entries []npzEntry
	for _, frame := range sampled {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		fit, found, err := req.Archive.FLAME(frame)
		if err != nil {
			summary.Errors++
			logger.Warn("flame read failed, continuing",
				logging.Int("frame", frame), logging.Error(err))
			continue
		}
		if !found {
			continue
		}
		prefix := fmt.Sprintf("frame_%06d", frame)
		entries = append(entries,
			npzEntry{Name: prefix + "_shape", Value: fit.Shape},
			npzEntry{Name: prefix + "_expression", Value: fit.Expression},
			npzEntry{Name: prefix + "_pose", Value: fit.Pose},
			npzEntry{Name: prefix + "_translation", Value: fit.Translation},
			npzEntry{Name: prefix + "_texture", Value: fit.Texture},
			npzEntry{Name: prefix + "_vertices", Value: fit.Vertices},
		)
		summary.Frames++
	}
	if len(entries) == 0 {
		return summary, nil
	}

	data, err := encodeNPZ(entries)
	if err != nil {
		return summary, err
	}
	written, err := writeFileAtomic(dest, data)
	if err != nil {
		return summary, err
	}
	summary.Files++
	summary.Bytes += written
	return summary, nil
}

// UVTextures materializes sampled UV texture frames as
// uv_textures/frame_NNNNNN.jpg. Payloads are stored encoded; they are
// written through without a decode round trip.
func UVTextures(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	frames, err := req.Archive.UVTextureFrames()
	if err != nil {
		return summary, err
	}
	if len(frames) == 0 {
		logger.Debug("archive carries no uv textures, skipping",
			logging.String(logging.FieldModality, string(ModalityUVTextures)))
		return summary, nil
	}

	for _, frame := range strideFrames(frames, req.Selection.TextureStride) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dest := filepath.Join(req.OutputDir, "uv_textures", fmt.Sprintf("frame_%06d.jpg", frame))
		if destExists(dest) {
			summary.Skipped++
			continue
		}
		payload, found, err := req.Archive.UVTexture(frame)
		if err != nil {
			summary.Errors++
			logger.Warn("uv texture read failed, continuing",
				logging.Int("frame", frame), logging.Error(err))
			continue
		}
		if !found {
			continue
		}
		written, err := writeFileAtomic(dest, payload)
		if err != nil {
			return summary, err
		}
		summary.Files++
		summary.Bytes += written
		summary.Frames++
	}
	return summary, nil
}
