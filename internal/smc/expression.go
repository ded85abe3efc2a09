package smc

import (
	"bytes"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"capstan/internal/services"
)

// FLAME field keys inside a flame/<frame> bucket.
var (
	keyFLAMEShape       = []byte("shape")
	keyFLAMEExpression  = []byte("expression")
	keyFLAMEPose        = []byte("pose")
	keyFLAMETranslation = []byte("translation")
	keyFLAMEVertices    = []byte("vertices")
	keyFLAMETexture     = []byte("texture")

	keyScanVertices = []byte("vertices")
	keyScanFaces    = []byte("faces")
)

// FLAMEFrame carries one frame's fitted parametric head-model data.
type FLAMEFrame struct {
	Shape       []float64
	Expression  []float64
	Pose        []float64
	Translation []float64
	Vertices    *mat.Dense
	Texture     []float64
}

// ScanMesh is the registered head scan for an expression performance.
type ScanMesh struct {
	Vertices *mat.Dense
	// Faces holds vertex indices, three per triangle.
	Faces []int32
}

// FLAME returns the fitted model frame, or ok=false when the archive's
// performance type carries no parametric data or the frame was not fitted.
func (a *Archive) FLAME(frame int) (FLAMEFrame, bool, error) {
	if !a.HasExpressionData() {
		return FLAMEFrame{}, false, nil
	}
	if err := a.checkFrame(frame); err != nil {
		return FLAMEFrame{}, false, err
	}

	var result FLAMEFrame
	found := false
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketFLAME)
		if group == nil {
			return nil
		}
		record := group.Bucket(frameKey(frame))
		if record == nil {
			return nil
		}
		found = true

		vectors := []struct {
			key    []byte
			target *[]float64
			name   string
		}{
			{keyFLAMEShape, &result.Shape, "shape"},
			{keyFLAMEExpression, &result.Expression, "expression"},
			{keyFLAMEPose, &result.Pose, "pose"},
			{keyFLAMETranslation, &result.Translation, "translation"},
			{keyFLAMETexture, &result.Texture, "texture"},
		}
		for _, entry := range vectors {
			raw := record.Get(entry.key)
			if raw == nil {
				return services.Wrap(services.ErrFormat, "archive", "flame",
					fmt.Sprintf("frame %d missing %s", frame, entry.name), nil)
			}
			if err := npyio.Read(bytes.NewReader(raw), entry.target); err != nil {
				return services.Wrap(services.ErrFormat, "archive", "flame",
					fmt.Sprintf("frame %d %s", frame, entry.name), err)
			}
		}

		raw := record.Get(keyFLAMEVertices)
		if raw == nil {
			return services.Wrap(services.ErrFormat, "archive", "flame",
				fmt.Sprintf("frame %d missing vertices", frame), nil)
		}
		var vertices mat.Dense
		if err := npyio.Read(bytes.NewReader(raw), &vertices); err != nil {
			return services.Wrap(services.ErrFormat, "archive", "flame",
				fmt.Sprintf("frame %d vertices", frame), err)
		}
		result.Vertices = &vertices
		return nil
	})
	if viewErr != nil {
		return FLAMEFrame{}, false, viewErr
	}
	return result, found, nil
}

// FLAMEFrames lists the frames with fitted model data. Empty when the
// performance type carries none.
func (a *Archive) FLAMEFrames() ([]int, error) {
	if !a.HasExpressionData() {
		return nil, nil
	}
	var frames []int
	err := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketFLAME)
		if group == nil {
			return nil
		}
		return group.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			var id int
			if _, err := fmt.Sscanf(string(k), "%d", &id); err != nil {
				return services.Wrap(services.ErrFormat, "archive", "flame",
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

// UVTexture returns the encoded UV texture payload for one frame, or
// ok=false when absent or not applicable to this performance type. The bytes
// are the compressed payload as stored; decoding is the caller's concern.
func (a *Archive) UVTexture(frame int) ([]byte, bool, error) {
	if !a.HasExpressionData() {
		return nil, false, nil
	}
	if err := a.checkFrame(frame); err != nil {
		return nil, false, err
	}
	var raw []byte
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketUVTexture)
		if group == nil {
			return nil
		}
		if data := group.Get(frameKey(frame)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if viewErr != nil {
		return nil, false, fmt.Errorf("read uv texture: %w", viewErr)
	}
	return raw, raw != nil, nil
}

// UVTextureFrames lists the frames carrying UV textures.
func (a *Archive) UVTextureFrames() ([]int, error) {
	if !a.HasExpressionData() {
		return nil, nil
	}
	return a.bucketFrames(func(tx *bolt.Tx) *bolt.Bucket {
		return tx.Bucket(bucketUVTexture)
	})
}

// Scan returns the registered head scan, or ok=false when the performance
// type carries none.
func (a *Archive) Scan() (ScanMesh, bool, error) {
	if !a.HasExpressionData() {
		return ScanMesh{}, false, nil
	}
	var mesh ScanMesh
	found := false
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketScan)
		if group == nil {
			return nil
		}
		rawVertices := group.Get(keyScanVertices)
		rawFaces := group.Get(keyScanFaces)
		if rawVertices == nil || rawFaces == nil {
			return nil
		}
		found = true
		var vertices mat.Dense
		if err := npyio.Read(bytes.NewReader(rawVertices), &vertices); err != nil {
			return services.Wrap(services.ErrFormat, "archive", "scan", "vertices", err)
		}
		mesh.Vertices = &vertices
		if err := npyio.Read(bytes.NewReader(rawFaces), &mesh.Faces); err != nil {
			return services.Wrap(services.ErrFormat, "archive", "scan", "faces", err)
		}
		return nil
	})
	if viewErr != nil {
		return ScanMesh{}, false, viewErr
	}
	return mesh, found, nil
}

// ScanMask returns one camera's encoded scan-coverage mask payload, or
// ok=false when absent or not applicable to this performance type.
func (a *Archive) ScanMask(camID string) ([]byte, bool, error) {
	if !a.HasExpressionData() {
		return nil, false, nil
	}
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return nil, false, err
	}
	var raw []byte
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketScanMask)
		if group == nil {
			return nil
		}
		if data := group.Get([]byte(camID)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if viewErr != nil {
		return nil, false, fmt.Errorf("read scan mask: %w", viewErr)
	}
	return raw, raw != nil, nil
}

// ScanMaskCameras lists the camera ids carrying scan masks.
func (a *Archive) ScanMaskCameras() ([]string, error) {
	if !a.HasExpressionData() {
		return nil, nil
	}
	var ids []string
	err := a.view(func(tx *bolt.Tx) error {
		group := tx.Bucket(bucketScanMask)
		if group == nil {
			return nil
		}
		return group.ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
