package smc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/sbinet/npyio"

	"capstan/internal/services"
)

// Audio lives under the reference camera's group.
var (
	audioCameraID    = []byte("00")
	bucketAudio      = []byte("audio")
	keyAudioSamples  = []byte("samples")
	keyAudioRate     = []byte("sample_rate")
)

// AudioClip carries the raw capture audio.
type AudioClip struct {
	Samples    []int16
	SampleRate int
}

// Audio returns the performance audio track, or ok=false when this archive's
// performance type carries none (only speech performances are recorded with
// sound).
func (a *Archive) Audio() (AudioClip, bool, error) {
	if !a.HasAudio() {
		return AudioClip{}, false, nil
	}

	var clip AudioClip
	found := false
	viewErr := a.view(func(tx *bolt.Tx) error {
		cameras := tx.Bucket(bucketCamera)
		if cameras == nil {
			return nil
		}
		camera := cameras.Bucket(audioCameraID)
		if camera == nil {
			return nil
		}
		audio := camera.Bucket(bucketAudio)
		if audio == nil {
			return nil
		}
		rawSamples := audio.Get(keyAudioSamples)
		rawRate := audio.Get(keyAudioRate)
		if rawSamples == nil || rawRate == nil {
			return services.Wrap(services.ErrFormat, "archive", "audio",
				"audio group present but samples or sample_rate missing", nil)
		}
		if err := npyio.Read(bytes.NewReader(rawSamples), &clip.Samples); err != nil {
			return services.Wrap(services.ErrFormat, "archive", "audio", "samples", err)
		}
		if err := json.Unmarshal(rawRate, &clip.SampleRate); err != nil {
			return services.Wrap(services.ErrFormat, "archive", "audio", "sample_rate", err)
		}
		if clip.SampleRate <= 0 {
			return services.Wrap(services.ErrFormat, "archive", "audio",
				fmt.Sprintf("non-positive sample rate %d", clip.SampleRate), nil)
		}
		found = true
		return nil
	})
	if viewErr != nil {
		return AudioClip{}, false, viewErr
	}
	return clip, found, nil
}
