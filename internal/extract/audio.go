package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"capstan/internal/logging"
)

// Audio materializes the performance audio track as audio/audio.wav (16-bit
// mono PCM) plus the raw sample sidecar audio/samples.npy. Non-speech
// performances carry no audio; that is a logged skip, not a failure.
func Audio(ctx context.Context, req Request) (Summary, error) {
	var summary Summary
	logger := req.logger()

	wavDest := filepath.Join(req.OutputDir, "audio", "audio.wav")
	npyDest := filepath.Join(req.OutputDir, "audio", "samples.npy")
	if destExists(wavDest) && destExists(npyDest) {
		summary.Skipped += 2
		return summary, nil
	}

	clip, found, err := req.Archive.Audio()
	if err != nil {
		return summary, err
	}
	if !found {
		logger.Debug("archive carries no audio, skipping",
			logging.String(logging.FieldModality, string(ModalityAudio)))
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if !destExists(wavDest) {
		written, err := writeWAV(wavDest, clip.Samples, clip.SampleRate)
		if err != nil {
			return summary, err
		}
		summary.Files++
		summary.Bytes += written
	} else {
		summary.Skipped++
	}

	if !destExists(npyDest) {
		data, err := encodeNPY(clip.Samples)
		if err != nil {
			return summary, fmt.Errorf("encode samples: %w", err)
		}
		written, err := writeFileAtomic(npyDest, data)
		if err != nil {
			return summary, err
		}
		summary.Files++
		summary.Bytes += written
	} else {
		summary.Skipped++
	}
	return summary, nil
}

func writeWAV(dest string, samples []int16, sampleRate int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create audio directory: %w", err)
	}
	tmp := dest + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, sample := range samples {
		data[i] = int(sample)
	}
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buffer); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("finalize wav: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("finalize %s: %w", dest, err)
	}
	return info.Size(), nil
}
