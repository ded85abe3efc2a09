package smc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strconv"

	"github.com/boltdb/bolt"

	"capstan/internal/services"
)

// ImageKind selects between the color and mask payloads of a camera frame.
type ImageKind string

const (
	KindColor ImageKind = "color"
	KindMask  ImageKind = "mask"
)

func (k ImageKind) valid() bool { return k == KindColor || k == KindMask }

// Frame pairs a frame id with its decoded pixels for batch results.
type Frame struct {
	ID    int
	Image image.Image
}

// Image decodes one camera frame. A camera or frame that was never captured
// reports ok=false; malformed requests fail with a validation error. Mask
// frames are collapsed to a single channel by taking the per-pixel maximum
// across channels, matching the archive's reference reduction exactly.
func (a *Archive) Image(camID string, kind ImageKind, frame int) (image.Image, bool, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return nil, false, err
	}
	if !kind.valid() {
		return nil, false, services.Wrap(services.ErrValidation, "archive", "image",
			fmt.Sprintf("unknown image kind %q", kind), nil)
	}
	if err := a.checkFrame(frame); err != nil {
		return nil, false, err
	}

	raw, found, err := a.imageBytes(camID, kind, frame)
	if err != nil || !found {
		return nil, false, err
	}
	return decodeImage(raw, kind)
}

// Images decodes a batch of frames in input order. Unlike single-frame
// access, a missing frame inside a batch request is an error: batch callers
// named their frames and silence would hide a gap.
func (a *Archive) Images(camID string, kind ImageKind, frames []int) ([]Frame, error) {
	result := make([]Frame, 0, len(frames))
	for _, frame := range frames {
		img, found, err := a.Image(camID, kind, frame)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, services.Wrap(services.ErrNotFound, "archive", "image batch",
				fmt.Sprintf("camera %s %s frame %d", camID, kind, frame), nil)
		}
		result = append(result, Frame{ID: frame, Image: img})
	}
	return result, nil
}

// ImagesAll decodes every captured frame for a camera, in ascending frame
// order. Frames absent from the archive are not part of "all" and are not an
// error here.
func (a *Archive) ImagesAll(camID string, kind ImageKind) ([]Frame, error) {
	frames, err := a.FrameIDs(camID, kind)
	if err != nil {
		return nil, err
	}
	return a.Images(camID, kind, frames)
}

// FrameIDs lists the frame ids actually present for a camera and kind, in
// ascending order. An absent camera yields an empty list.
func (a *Archive) FrameIDs(camID string, kind ImageKind) ([]int, error) {
	camID, err := normalizeCameraID(camID)
	if err != nil {
		return nil, err
	}
	if !kind.valid() {
		return nil, services.Wrap(services.ErrValidation, "archive", "image",
			fmt.Sprintf("unknown image kind %q", kind), nil)
	}

	var frames []int
	viewErr := a.view(func(tx *bolt.Tx) error {
		group := frameBucket(tx, camID, kind)
		if group == nil {
			return nil
		}
		return group.ForEach(func(k, v []byte) error {
			id, err := strconv.Atoi(string(k))
			if err != nil {
				return services.Wrap(services.ErrFormat, "archive", "image",
					fmt.Sprintf("camera %s has non-numeric frame key %q", camID, k), nil)
			}
			frames = append(frames, id)
			return nil
		})
	})
	if viewErr != nil {
		return nil, viewErr
	}
	sort.Ints(frames)
	return frames, nil
}

func (a *Archive) imageBytes(camID string, kind ImageKind, frame int) ([]byte, bool, error) {
	var raw []byte
	err := a.view(func(tx *bolt.Tx) error {
		group := frameBucket(tx, camID, kind)
		if group == nil {
			return nil
		}
		if data := group.Get(frameKey(frame)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read image payload: %w", err)
	}
	return raw, raw != nil, nil
}

func frameBucket(tx *bolt.Tx, camID string, kind ImageKind) *bolt.Bucket {
	cameras := tx.Bucket(bucketCamera)
	if cameras == nil {
		return nil
	}
	camera := cameras.Bucket([]byte(camID))
	if camera == nil {
		return nil
	}
	return camera.Bucket([]byte(kind))
}

func decodeImage(raw []byte, kind ImageKind) (image.Image, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false, services.Wrap(services.ErrExtraction, "archive", "image decode", "", err)
	}
	if kind == KindMask {
		return CollapseMask(img), true, nil
	}
	return img, true, nil
}

// CollapseMask reduces a multi-channel mask decode to a single channel by
// taking the per-pixel maximum across the color channels. Downstream
// consumers diff against this exact reduction.
func CollapseMask(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			max := r
			if g > max {
				max = g
			}
			if b > max {
				max = b
			}
			out.SetGray(x, y, color.Gray{Y: uint8(max >> 8)})
		}
	}
	return out
}
