package smc

import (
	"fmt"

	"capstan/internal/services"
)

// Keypoint detector coverage: only this contiguous camera id range carries
// facial landmark detections.
const (
	detectorCameraMin = 18
	detectorCameraMax = 32
)

// FormatCameraID renders a numeric camera id in the archive's two-digit
// zero-padded form.
func FormatCameraID(id int) string {
	return fmt.Sprintf("%02d", id)
}

// normalizeCameraID validates the two-digit zero-padded camera id format.
// A malformed id is a structural error, not a lookup miss.
func normalizeCameraID(camID string) (string, error) {
	if len(camID) != 2 || camID[0] < '0' || camID[0] > '9' || camID[1] < '0' || camID[1] > '9' {
		return "", services.Wrap(services.ErrValidation, "archive", "camera id",
			fmt.Sprintf("%q is not a zero-padded two-digit id", camID), nil)
	}
	return camID, nil
}

func cameraIDValue(camID string) int {
	return int(camID[0]-'0')*10 + int(camID[1]-'0')
}

// checkFrame validates frame against the archive's declared frame count.
// Frames are dense integers in [0, num_frame).
func (a *Archive) checkFrame(frame int) error {
	if frame < 0 || frame >= a.cameraInfo.NumFrame {
		return services.Wrap(services.ErrValidation, "archive", "frame id",
			fmt.Sprintf("%d outside [0, %d)", frame, a.cameraInfo.NumFrame), nil)
	}
	return nil
}

// frameKey renders a frame id as the archive's six-digit key form.
func frameKey(frame int) []byte {
	return []byte(fmt.Sprintf("%06d", frame))
}
