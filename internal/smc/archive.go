package smc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boltdb/bolt"

	"capstan/internal/services"
)

// Bucket and key names inside an archive.
var (
	bucketMeta        = []byte("meta")
	bucketCalibration = []byte("calibration")
	bucketCamera      = []byte("camera")
	bucketKeypoints2d = []byte("keypoints2d")
	bucketKeypoints3d = []byte("keypoints3d")
	bucketFLAME       = []byte("flame")
	bucketUVTexture   = []byte("uv_texture")
	bucketScan        = []byte("scan")
	bucketScanMask    = []byte("scan_mask")

	keyArchiveInfo = []byte("archive")
	keyActorInfo   = []byte("actor")
	keyCameraInfo  = []byte("camera")
)

// ArchiveInfo identifies the capture unit an archive holds.
type ArchiveInfo struct {
	SubjectID       string `json:"subject_id"`
	PerformancePart string `json:"performance_part"`
	CaptureDate     string `json:"capture_date"`
}

// ActorInfo describes the captured subject.
type ActorInfo struct {
	Age    int     `json:"age"`
	Gender string  `json:"gender"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

// CameraInfo describes the capture rig for this archive.
type CameraInfo struct {
	NumDevice int `json:"num_device"`
	NumFrame  int `json:"num_frame"`
	// Resolution is [height, width] shared by every camera in the archive.
	Resolution [2]int `json:"resolution"`
}

// Archive is an open read handle over one .smc container.
type Archive struct {
	db   *bolt.DB
	path string

	archiveInfo ArchiveInfo
	actorInfo   ActorInfo
	cameraInfo  CameraInfo

	calibOnce  sync.Once
	calibSet   CalibrationSet
	calibErr   error
	calibLoads int
}

// Open opens the archive at path read-only and validates its top-level
// metadata. A missing or corrupt metadata record fails with ErrFormat.
func Open(path string) (*Archive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	archive := &Archive{db: db, path: path}
	if err := archive.loadMetadata(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

// Close releases the handle. The calibration cache dies with it. Accessors
// called afterwards fail with ErrClosed.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	return db.Close()
}

// ErrClosed is returned by accessors used after Close.
var ErrClosed = errors.New("archive handle closed")

func (a *Archive) view(fn func(tx *bolt.Tx) error) error {
	if a.db == nil {
		return fmt.Errorf("%s: %w", a.path, ErrClosed)
	}
	return a.db.View(fn)
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Info returns the archive identity metadata.
func (a *Archive) Info() ArchiveInfo { return a.archiveInfo }

// ActorInfo returns the captured subject's metadata.
func (a *Archive) ActorInfo() ActorInfo { return a.actorInfo }

// CameraInfo returns the rig metadata.
func (a *Archive) CameraInfo() CameraInfo { return a.cameraInfo }

// HasExpressionData reports whether this archive's performance type carries
// FLAME, UV texture, and scan modalities. Derived from the performance part
// naming convention: expression performances start with "e".
func (a *Archive) HasExpressionData() bool {
	return strings.HasPrefix(a.archiveInfo.PerformancePart, "e")
}

// HasAudio reports whether this archive's performance type carries audio.
// Speech performances start with "s".
func (a *Archive) HasAudio() bool {
	return strings.HasPrefix(a.archiveInfo.PerformancePart, "s")
}

// CameraIDs lists the camera ids actually present in the camera group, in
// ascending order. Cameras the rig declares but never captured are absent.
func (a *Archive) CameraIDs() ([]string, error) {
	var ids []string
	err := a.view(func(tx *bolt.Tx) error {
		cameras := tx.Bucket(bucketCamera)
		if cameras == nil {
			return nil
		}
		return cameras.ForEach(func(k, v []byte) error {
			if v == nil {
				ids = append(ids, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return ids, nil
}

// HasCamera reports whether camID exists in the camera group.
func (a *Archive) HasCamera(camID string) (bool, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return false, err
	}
	found := false
	viewErr := a.view(func(tx *bolt.Tx) error {
		cameras := tx.Bucket(bucketCamera)
		if cameras == nil {
			return nil
		}
		found = cameras.Bucket([]byte(camID)) != nil
		return nil
	})
	if viewErr != nil {
		return false, fmt.Errorf("check camera %s: %w", camID, viewErr)
	}
	return found, nil
}

func (a *Archive) loadMetadata() error {
	return a.view(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return services.Wrap(services.ErrFormat, "archive", "open", "missing meta group", nil)
		}
		if err := decodeMetaRecord(meta, keyArchiveInfo, &a.archiveInfo); err != nil {
			return err
		}
		if err := decodeMetaRecord(meta, keyActorInfo, &a.actorInfo); err != nil {
			return err
		}
		if err := decodeMetaRecord(meta, keyCameraInfo, &a.cameraInfo); err != nil {
			return err
		}
		return nil
	})
}

func decodeMetaRecord(meta *bolt.Bucket, key []byte, target any) error {
	raw := meta.Get(key)
	if raw == nil {
		return services.Wrap(services.ErrFormat, "archive", "open",
			fmt.Sprintf("missing %s metadata", key), nil)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return services.Wrap(services.ErrFormat, "archive", "open",
			fmt.Sprintf("corrupt %s metadata", key), err)
	}
	return nil
}
