package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"

	"capstan/internal/logging"
	"capstan/internal/smc"
)

const colorJPEGQuality = 95

// Images materializes color frames as images/cam_NN/frame_NNNNNN.jpg.
func Images(ctx context.Context, req Request) (Summary, error) {
	return extractFrames(ctx, req, smc.KindColor, "images", "jpg", func(img image.Image) ([]byte, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: colorJPEGQuality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// Masks materializes single-channel masks as masks/cam_NN/frame_NNNNNN.png.
func Masks(ctx context.Context, req Request) (Summary, error) {
	return extractFrames(ctx, req, smc.KindMask, "masks", "png", func(img image.Image) ([]byte, error) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// extractFrames runs the shared per-camera, per-frame loop. Loops are
// sequential so a resumed run picks up exactly where the previous one
// stopped. A frame that fails to decode is logged and counted; the loop
// moves on.
func extractFrames(ctx context.Context, req Request, kind smc.ImageKind, subtree, ext string, encode func(image.Image) ([]byte, error)) (Summary, error) {
	var summary Summary
	logger := req.logger()

	cameras, err := resolveCameras(req.Archive, req.Selection)
	if err != nil {
		return summary, err
	}

	for _, camID := range cameras {
		frames, err := req.Archive.FrameIDs(camID, kind)
		if err != nil {
			return summary, err
		}
		if len(frames) == 0 {
			logger.Debug("no frames for camera, skipping",
				logging.String(logging.FieldModality, subtree),
				logging.String(logging.FieldCamera, camID))
			continue
		}
		summary.CamerasExtracted++

		cameraDir := filepath.Join(req.OutputDir, subtree, "cam_"+camID)
		for _, frame := range frames {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			dest := filepath.Join(cameraDir, fmt.Sprintf("frame_%06d.%s", frame, ext))
			if destExists(dest) {
				summary.Skipped++
				continue
			}

			img, found, err := req.Archive.Image(camID, kind, frame)
			if err != nil {
				summary.Errors++
				logger.Warn("frame decode failed, continuing",
					logging.String(logging.FieldModality, subtree),
					logging.String(logging.FieldCamera, camID),
					logging.Int("frame", frame),
					logging.Error(err),
				)
				continue
			}
			if !found {
				continue
			}

			encoded, err := encode(img)
			if err != nil {
				summary.Errors++
				logger.Warn("frame encode failed, continuing",
					logging.String(logging.FieldModality, subtree),
					logging.String(logging.FieldCamera, camID),
					logging.Int("frame", frame),
					logging.Error(err),
				)
				continue
			}
			written, err := writeFileAtomic(dest, encoded)
			if err != nil {
				return summary, err
			}
			summary.Files++
			summary.Bytes += written
			summary.Frames++
		}
	}
	return summary, nil
}
