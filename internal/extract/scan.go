package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	"capstan/internal/logging"
	"capstan/internal/smc"
)

// Scan materializes the registered head scan as scan/mesh.ply (ASCII PLY).
func Scan(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	dest := filepath.Join(req.OutputDir, "scan", "mesh.ply")
	if destExists(dest) {
		summary.Skipped++
		return summary, nil
	}

	mesh, found, err := req.Archive.Scan()
	if err != nil {
		return summary, err
	}
	if !found {
		logger.Debug("archive carries no scan mesh, skipping",
			logging.String(logging.FieldModality, string(ModalityScan)))
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	data, err := encodePLY(mesh)
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

// ScanMasks materializes per-camera scan-coverage masks as
// scan_masks/cam_NN.png, collapsed to a single channel like frame masks.
func ScanMasks(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	cameras, err := req.Archive.ScanMaskCameras()
	if err != nil {
		return summary, err
	}
	if len(cameras) == 0 {
		logger.Debug("archive carries no scan masks, skipping",
			logging.String(logging.FieldModality, string(ModalityScanMasks)))
		return summary, nil
	}

	requested := make(map[string]bool, len(req.Selection.Cameras))
	for _, camID := range req.Selection.Cameras {
		requested[camID] = true
	}

	for _, camID := range cameras {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if len(requested) > 0 && !requested[camID] {
			continue
		}
		dest := filepath.Join(req.OutputDir, "scan_masks", fmt.Sprintf("cam_%s.png", camID))
		if destExists(dest) {
			summary.Skipped++
			summary.CamerasExtracted++
			continue
		}

		payload, found, err := req.Archive.ScanMask(camID)
		if err != nil || !found {
			if err != nil {
				summary.Errors++
				logger.Warn("scan mask read failed, continuing",
					logging.String(logging.FieldCamera, camID), logging.Error(err))
			}
			continue
		}
		decoded, _, err := image.Decode(bytes.NewReader(payload))
		if err != nil {
			summary.Errors++
			logger.Warn("scan mask decode failed, continuing",
				logging.String(logging.FieldCamera, camID), logging.Error(err))
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, smc.CollapseMask(decoded)); err != nil {
			summary.Errors++
			logger.Warn("scan mask encode failed, continuing",
				logging.String(logging.FieldCamera, camID), logging.Error(err))
			continue
		}
		written, err := writeFileAtomic(dest, buf.Bytes())
		if err != nil {
			return summary, err
		}
		summary.Files++
		summary.Bytes += written
		summary.CamerasExtracted++
	}
	return summary, nil
}
