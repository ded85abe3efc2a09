package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"capstan/internal/logging"
)

// Calibration persists per-camera calibration as cam_NN.npz files plus an
// all_cameras.npz table. Only cameras confirmed present in the archive's
// camera group are persisted: an id that was requested but never captured is
// filtered out, not written empty.
func Calibration(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	table, err := req.Archive.Calibrations()
	if err != nil {
		return summary, err
	}
	requested, err := resolveCameras(req.Archive, req.Selection)
	if err != nil {
		return summary, err
	}

	var persisted []string
	for _, camID := range requested {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		present, err := req.Archive.HasCamera(camID)
		if err != nil {
			return summary, err
		}
		if !present {
			logger.Debug("calibration skipped: camera not in archive",
				logging.String(logging.FieldCamera, camID))
			continue
		}
		calib, ok := table[camID]
		if !ok {
			logger.Debug("calibration skipped: camera has no calibration record",
				logging.String(logging.FieldCamera, camID))
			continue
		}
		persisted = append(persisted, camID)

		dest := filepath.Join(req.OutputDir, "calibration", fmt.Sprintf("cam_%s.npz", camID))
		if destExists(dest) {
			summary.Skipped++
			continue
		}
		data, err := encodeNPZ([]npzEntry{
			{Name: "D", Value: calib.D},
			{Name: "K", Value: calib.K},
			{Name: "RT", Value: calib.RT},
		})
		if err != nil {
			return summary, err
		}
		written, err := writeFileAtomic(dest, data)
		if err != nil {
			return summary, err
		}
		summary.Files++
		summary.Bytes += written
	}
	sort.Strings(persisted)
	summary.CamerasExtracted = len(persisted)

	allDest := filepath.Join(req.OutputDir, "calibration", "all_cameras.npz")
	if destExists(allDest) {
		summary.Skipped++
		return summary, nil
	}
	entries := make([]npzEntry, 0, 3*len(persisted))
	for _, camID := range persisted {
		calib := table[camID]
		entries = append(entries,
			npzEntry{Name: fmt.Sprintf("cam_%s_D", camID), Value: calib.D},
			npzEntry{Name: fmt.Sprintf("cam_%s_K", camID), Value: calib.K},
			npzEntry{Name: fmt.Sprintf("cam_%s_RT", camID), Value: calib.RT},
		)
	}
	data, err := encodeNPZ(entries)
	if err != nil {
		return summary, err
	}
	written, err := writeFileAtomic(allDest, data)
	if err != nil {
		return summary, err
	}
	summary.Files++
	summary.Bytes += written
	return summary, nil
}
