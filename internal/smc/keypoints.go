package smc

import (
	"bytes"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"capstan/internal/services"
)

// Keypoints2d returns the 2D facial landmarks detected for one camera frame.
// Only cameras in the detector range carry landmarks; requesting any other
// camera is a validation error. A camera in range with no detections, or a
// frame the detector missed (occlusion), reports ok=false: both are routine.
func (a *Archive) Keypoints2d(camID string, frame int) (*mat.Dense, bool, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return nil, false, err
	}
	if id := cameraIDValue(camID); id < detectorCameraMin || id > detectorCameraMax {
		return nil, false, services.Wrap(services.ErrValidation, "archive", "keypoints2d",
			fmt.Sprintf("camera %s outside detector range [%02d, %02d]",
				camID, detectorCameraMin, detectorCameraMax), nil)
	}
	if err := a.checkFrame(frame); err != nil {
		return nil, false, err
	}

	var raw []byte
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketKeypoints2d)
		if group == nil {
			return nil
		}
		camera := group.Bucket([]byte(camID))
		if camera == nil {
			return nil
		}
		if data := camera.Get(frameKey(frame)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if viewErr != nil {
		return nil, false, fmt.Errorf("read keypoints2d: %w", viewErr)
	}
	if raw == nil {
		return nil, false, nil
	}
	return decodeDense(raw, "keypoints2d", camID, frame)
}

// Keypoints2dFrames lists the frames with detections for one camera, in key
// order (ascending).
func (a *Archive) Keypoints2dFrames(camID string) ([]int, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return nil, err
	}
	return a.bucketFrames(func(tx *bolt.Tx) *bolt.Bucket {
		group := tx.Bucket(bucketKeypoints2d)
		if group == nil {
			return nil
		}
		return group.Bucket([]byte(camID))
	})
}

// Keypoints3d returns the triangulated 3D landmarks for one frame, or
// ok=false when the frame has no triangulation.
func (a *Archive) Keypoints3d(frame int) (*mat.Dense, bool, error) {
	if err := a.checkFrame(frame); err != nil {
		return nil, false, err
	}
	var raw []byte
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketKeypoints3d)
		if group == nil {
			return nil
		}
		if data := group.Get(frameKey(frame)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if viewErr != nil {
		return nil, false, fmt.Errorf("read keypoints3d: %w", viewErr)
	}
	if raw == nil {
		return nil, false, nil
	}
	return decodeDense(raw, "keypoints3d", "", frame)
}

// Keypoints3dFrames lists the frames carrying 3D landmarks.
func (a *Archive) Keypoints3dFrames() ([]int, error) {
	return a.bucketFrames(func(tx *bolt.Tx) *bolt.Bucket {
		return tx.Bucket(bucketKeypoints3d)
	})
}

func (a *Archive) bucketFrames(lookup func(tx *bolt.Tx) *bolt.Bucket) ([]int, error) {
	var frames []int
	err := a.view(func(tx *bolt.Tx) error {
		group := lookup(tx)
		if group == nil {
			return nil
		}
		return group.ForEach(func(k, v []byte) error {
			var id int
			if _, err := fmt.Sscanf(string(k), "%d", &id); err != nil {
				return services.Wrap(services.ErrFormat, "archive", "keypoints",
					fmt.Sprintf("non-numeric frame key %q", k), nil)
			}
			frames = append(frames, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func decodeDense(raw []byte, op, camID string, frame int) (*mat.Dense, bool, error) {
	var m mat.Dense
	if err := npyio.Read(bytes.NewReader(raw), &m); err != nil {
		detail := fmt.Sprintf("frame %d", frame)
		if camID != "" {
			detail = fmt.Sprintf("camera %s frame %d", camID, frame)
		}
		return nil, false, services.Wrap(services.ErrFormat, "archive", op, detail, err)
	}
	return &m, true, nil
}
