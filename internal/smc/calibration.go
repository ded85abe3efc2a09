package smc

import (
	"bytes"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"capstan/internal/services"
)

var (
	keyDistortion = []byte("D")
	keyIntrinsic  = []byte("K")
	keyExtrinsic  = []byte("RT")
)

// Calibration holds one camera's distortion coefficients, intrinsic matrix,
// and extrinsic pose matrix.
type Calibration struct {
	D  []float64
	K  *mat.Dense
	RT *mat.Dense
}

// CalibrationSet maps camera id to its calibration.
type CalibrationSet map[string]Calibration

// Calibration returns the calibration for one camera. A camera absent from
// the calibration group is ErrNotFound; a malformed id is a validation error.
func (a *Archive) Calibration(camID string) (Calibration, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return Calibration{}, err
	}

	var calib Calibration
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketCalibration)
		if group == nil {
			return services.Wrap(services.ErrNotFound, "archive", "calibration", "no calibration group", nil)
		}
		camera := group.Bucket([]byte(camID))
		if camera == nil {
			return services.Wrap(services.ErrNotFound, "archive", "calibration",
				fmt.Sprintf("camera %s", camID), nil)
		}
		var err error
		calib, err = readCalibration(camera, camID)
		return err
	})
	if viewErr != nil {
		return Calibration{}, viewErr
	}
	return calib, nil
}

// Calibrations returns the full calibration table. The first call performs
// the whole-archive read; the result is memoized on the handle, so later
// calls (including concurrent first calls) do not re-read.
func (a *Archive) Calibrations() (CalibrationSet, error) {
	a.calibOnce.Do(func() {
		a.calibLoads++
		a.calibSet, a.calibErr = a.loadCalibrations()
	})
	return a.calibSet, a.calibErr
}

// CalibrationLoads reports how many times the expensive whole-table read ran.
func (a *Archive) CalibrationLoads() int { return a.calibLoads }

func (a *Archive) loadCalibrations() (CalibrationSet, error) {
	set := make(CalibrationSet)
	err := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketCalibration)
		if group == nil {
			return nil
		}
		return group.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			camID := string(k)
			calib, err := readCalibration(group.Bucket(k), camID)
			if err != nil {
				return err
			}
			set[camID] = calib
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load calibration table: %w", err)
	}
	return set, nil
}

func readCalibration(camera *bolt.Bucket, camID string) (Calibration, error) {
	var calib Calibration

	raw := camera.Get(keyDistortion)
	if raw == nil {
		return calib, services.Wrap(services.ErrFormat, "archive", "calibration",
			fmt.Sprintf("camera %s missing D", camID), nil)
	}
	if err := npyio.Read(bytes.NewReader(raw), &calib.D); err != nil {
		return calib, services.Wrap(services.ErrFormat, "archive", "calibration",
			fmt.Sprintf("camera %s D", camID), err)
	}

	for _, entry := range []struct {
		key    []byte
		target **mat.Dense
		name   string
	}{
		{keyIntrinsic, &calib.K, "K"},
		{keyExtrinsic, &calib.RT, "RT"},
	} {
		raw := camera.Get(entry.key)
		if raw == nil {
			return calib, services.Wrap(services.ErrFormat, "archive", "calibration",
				fmt.Sprintf("camera %s missing %s", camID, entry.name), nil)
		}
		var m mat.Dense
		if err := npyio.Read(bytes.NewReader(raw), &m); err != nil {
			return calib, services.Wrap(services.ErrFormat, "archive", "calibration",
				fmt.Sprintf("camera %s %s", camID, entry.name), err)
		}
		*entry.target = &m
	}
	return calib, nil
}
