package extract

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"capstan/internal/smc"
)

// taskMetadata is the persisted shape of metadata/info.json.
type taskMetadata struct {
	Subject     string          `json:"subject"`
	Performance string          `json:"performance"`
	CaptureDate string          `json:"capture_date"`
	Actor       smc.ActorInfo   `json:"actor"`
	Camera      smc.CameraInfo  `json:"camera"`
	Expression  bool            `json:"has_expression_data"`
	Audio       bool            `json:"has_audio"`
}

// WriteMetadata persists the archive's metadata as info.json under dir. It
// is written once per task at the performance level, from whichever archive
// variant is available.
func WriteMetadata(archive *smc.Archive, dir string) (Summary, error) {
	var summary Summary
	dest := filepath.Join(dir, "info.json")
	if destExists(dest) {
		summary.Skipped++
		return summary, nil
	}

	info := archive.Info()
	record := taskMetadata{
		Subject:     info.SubjectID,
		Performance: info.PerformancePart,
		CaptureDate: info.CaptureDate,
		Actor:       archive.ActorInfo(),
		Camera:      archive.CameraInfo(),
		Expression:  archive.HasExpressionData(),
		Audio:       archive.HasAudio(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("marshal metadata: %w", err)
	}
	written, err := writeFileAtomic(dest, data)
	if err != nil {
		return summary, err
	}
	summary.Files++
	summary.Bytes += written
	summary.Frames = record.Camera.NumFrame
	return summary, nil
}
