package smc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Builder creates .smc archives from in-memory modality data. It exists for
// fixtures and repacking tooling; the extraction pipeline itself only reads.
type Builder struct {
	db *bolt.DB
}

// NewBuilder creates an empty archive at path and writes its metadata.
func NewBuilder(path string, info ArchiveInfo, actor ActorInfo, camera CameraInfo) (*Builder, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	builder := &Builder{db: db}
	if err := builder.writeMetadata(info, actor, camera); err != nil {
		_ = db.Close()
		return nil, err
	}
	return builder, nil
}

// Close finishes the archive.
func (b *Builder) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	db := b.db
	b.db = nil
	return db.Close()
}

func (b *Builder) writeMetadata(info ArchiveInfo, actor ActorInfo, camera CameraInfo) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		records := []struct {
			key   []byte
			value any
		}{
			{keyArchiveInfo, info},
			{keyActorInfo, actor},
			{keyCameraInfo, camera},
		}
		for _, record := range records {
			raw, err := json.Marshal(record.value)
			if err != nil {
				return fmt.Errorf("marshal %s metadata: %w", record.key, err)
			}
			if err := meta.Put(record.key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddCamera registers a camera in the camera group without any frames.
func (b *Builder) AddCamera(camID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := createCameraBucket(tx, camID)
		return err
	})
}

// AddCalibration stores one camera's calibration.
func (b *Builder) AddCalibration(camID string, calib Calibration) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketCalibration)
		if err != nil {
			return err
		}
		camera, err := group.CreateBucketIfNotExists([]byte(camID))
		if err != nil {
			return err
		}
		if err := putNPY(camera, keyDistortion, calib.D); err != nil {
			return err
		}
		if err := putNPY(camera, keyIntrinsic, calib.K); err != nil {
			return err
		}
		return putNPY(camera, keyExtrinsic, calib.RT)
	})
}

// AddImage stores one encoded frame payload (JPEG for color, PNG for mask).
func (b *Builder) AddImage(camID string, kind ImageKind, frame int, encoded []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		camera, err := createCameraBucket(tx, camID)
		if err != nil {
			return err
		}
		group, err := camera.CreateBucketIfNotExists([]byte(kind))
		if err != nil {
			return err
		}
		return group.Put(frameKey(frame), encoded)
	})
}

// AddKeypoints2d stores one camera frame's 2D landmarks.
func (b *Builder) AddKeypoints2d(camID string, frame int, points *mat.Dense) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketKeypoints2d)
		if err != nil {
			return err
		}
		camera, err := group.CreateBucketIfNotExists([]byte(camID))
		if err != nil {
			return err
		}
		return putNPY(camera, frameKey(frame), points)
	})
}

// AddKeypoints3d stores one frame's 3D landmarks.
func (b *Builder) AddKeypoints3d(frame int, points *mat.Dense) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketKeypoints3d)
		if err != nil {
			return err
		}
		return putNPY(group, frameKey(frame), points)
	})
}

// AddFLAME stores one frame's parametric-model fit.
func (b *Builder) AddFLAME(frame int, data FLAMEFrame) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketFLAME)
		if err != nil {
			return err
		}
		record, err := group.CreateBucketIfNotExists(frameKey(frame))
		if err != nil {
			return err
		}
		entries := []struct {
			key   []byte
			value any
		}{
			{keyFLAMEShape, data.Shape},
			{keyFLAMEExpression, data.Expression},
			{keyFLAMEPose, data.Pose},
			{keyFLAMETranslation, data.Translation},
			{keyFLAMETexture, data.Texture},
			{keyFLAMEVertices, data.Vertices},
		}
		for _, entry := range entries {
			if err := putNPY(record, entry.key, entry.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddUVTexture stores one frame's encoded UV texture.
func (b *Builder) AddUVTexture(frame int, encoded []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketUVTexture)
		if err != nil {
			return err
		}
		return group.Put(frameKey(frame), encoded)
	})
}

// SetScan stores the registered head scan.
func (b *Builder) SetScan(mesh ScanMesh) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketScan)
		if err != nil {
			return err
		}
		if err := putNPY(group, keyScanVertices, mesh.Vertices); err != nil {
			return err
		}
		return putNPY(group, keyScanFaces, mesh.Faces)
	})
}

// AddScanMask stores one camera's encoded scan-coverage mask.
func (b *Builder) AddScanMask(camID string, encoded []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		group, err := tx.CreateBucketIfNotExists(bucketScanMask)
		if err != nil {
			return err
		}
		return group.Put([]byte(camID), encoded)
	})
}

// SetAudio stores the performance audio track under the reference camera.
func (b *Builder) SetAudio(clip AudioClip) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		camera, err := createCameraBucket(tx, string(audioCameraID))
		if err != nil {
			return err
		}
		audio, err := camera.CreateBucketIfNotExists(bucketAudio)
		if err != nil {
			return err
		}
		if err := putNPY(audio, keyAudioSamples, clip.Samples); err != nil {
			return err
		}
		rate, err := json.Marshal(clip.SampleRate)
		if err != nil {
			return err
		}
		return audio.Put(keyAudioRate, rate)
	})
}

func createCameraBucket(tx *bolt.Tx, camID string) (*bolt.Bucket, error) {
	cameras, err := tx.CreateBucketIfNotExists(bucketCamera)
	if err != nil {
		return nil, err
	}
	return cameras.CreateBucketIfNotExists([]byte(camID))
}

func putNPY(bucket *bolt.Bucket, key []byte, value any) error {
	var buf bytes.Buffer
	if err := npyio.Write(&buf, value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return bucket.Put(key, buf.Bytes())
}
