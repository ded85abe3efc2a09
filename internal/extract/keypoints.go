package extract

import (
	"context"
	"fmt"
	"path/filepath"

	"capstan/internal/logging"
)

// Keypoints2d materializes sampled 2D landmarks as keypoints2d/cam_NN.npz,
// one npz per detector-range camera in the selection. Frames are sampled at
// the keypoint stride.
func Keypoints2d(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	cameras, err := resolveCameras(req.Archive, req.Selection)
	if err != nil {
		return summary, err
	}

	for _, camID := range cameras {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		frames, err := req.Archive.Keypoints2dFrames(camID)
		if err != nil {
			return summary, err
		}
		if len(frames) == 0 {
			logger.Debug("no 2d keypoints for camera, skipping",
				logging.String(logging.FieldCamera, camID))
			continue
		}

		dest := filepath.Join(req.OutputDir, "keypoints2d", fmt.Sprintf("cam_%s.npz", camID))
		if destExists(dest) {
			summary.Skipped++
			summary.CamerasExtracted++
			continue
		}

		sampled := strideFrames(frames, req.Selection.KeypointStride)
		entries := make([]npzEntry, 0, len(sampled))
		for _, frame := range sampled {
			points, found, err := req.Archive.Keypoints2d(camID, frame)
			if err != nil {
				summary.Errors++
				logger.Warn("keypoints2d read failed, continuing",
					logging.String(logging.FieldCamera, camID),
					logging.Int("frame", frame),
					logging.Error(err),
				)
				continue
			}
			if !found {
				continue
			}
			entries = append(entries, npzEntry{
				Name:  fmt.Sprintf("frame_%06d", frame),
				Value: points,
			})
		}
		if len(entries) == 0 {
			continue
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
		summary.Frames += len(entries)
		summary.CamerasExtracted++
	}
	return summary, nil
}

// Keypoints3d materializes sampled 3D landmarks as keypoints3d/all_frames.npz.
func Keypoints3d(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	dest := filepath.Join(req.OutputDir, "keypoints3d", "all_frames.npz")
	if destExists(dest) {
		summary.Skipped++
		return summary, nil
	}

	frames, err := req.Archive.Keypoints3dFrames()
	if err != nil {
		return summary, err
	}
	if len(frames) == 0 {
		logger.Debug("archive carries no 3d keypoints, skipping")
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	sampled := strideFrames(frames, req.Selection.KeypointStride)
	entries := make([]npzEntry, 0, len(sampled))
	for _, frame := range sampled {
		points, found, err := req.Archive.Keypoints3d(frame)
		if err != nil {
			summary.Errors++
			logger.Warn("keypoints3d read failed, continuing",
				logging.Int("frame", frame), logging.Error(err))
			continue
		}
		if !found {
			continue
		}
		entries = append(entries, npzEntry{
			Name:  fmt.Sprintf("frame_%06d", frame),
			Value: points,
		})
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
	summary.Frames = len(entries)
	return summary, nil
}
