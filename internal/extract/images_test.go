package extract

import (
	"crypto/sha256"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func hashTree(t *testing.T, root string) map[string][32]byte {
	t.Helper()
	hashes := make(map[string][32]byte)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.Type().IsRegular() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		hashes[rel] = sha256.Sum256(data)
		return nil
	})
	if err != nil {
		t.Fatalf("hash tree: %v", err)
	}
	return hashes
}

func TestImagesWritesPerCameraFrames(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 3})
	out := t.TempDir()

	summary, err := Images(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if summary.Files != 9 {
		t.Errorf("files = %d, want 9 (3 cameras x 3 frames)", summary.Files)
	}
	if summary.CamerasExtracted != 3 {
		t.Errorf("cameras = %d", summary.CamerasExtracted)
	}
	if !destExists(filepath.Join(out, "images", "cam_12", "frame_000002.jpg")) {
		t.Error("expected frame_000002.jpg for cam_12")
	}
}

func TestImagesSkipsAbsentRequestedCamera(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 2})
	out := t.TempDir()

	summary, err := Images(testCtx, testRequest(archive, out, "00", "06", "12"))
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if summary.CamerasExtracted != 2 {
		t.Errorf("cameras = %d, want 2", summary.CamerasExtracted)
	}
	if _, err := os.Stat(filepath.Join(out, "images", "cam_06")); !os.IsNotExist(err) {
		t.Error("cam_06 must write zero files")
	}
}

func TestImagesIdempotentResume(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 2})
	out := t.TempDir()

	first, err := Images(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := hashTree(t, out)

	second, err := Images(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Files != 0 {
		t.Errorf("second run wrote %d files, want 0", second.Files)
	}
	if second.Skipped != first.Files {
		t.Errorf("second run skipped %d, want %d", second.Skipped, first.Files)
	}

	after := hashTree(t, out)
	if len(before) != len(after) {
		t.Fatalf("file sets differ: %d vs %d", len(before), len(after))
	}
	for rel, hash := range before {
		if after[rel] != hash {
			t.Errorf("file %s changed between runs", rel)
		}
	}
}

func TestImagesPartialRunResumesRemainingFrames(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 3})
	out := t.TempDir()

	// Simulate an interrupted run that finished only cam_00 frame 0.
	pre := filepath.Join(out, "images", "cam_00", "frame_000000.jpg")
	if _, err := writeFileAtomic(pre, []byte("already done")); err != nil {
		t.Fatalf("seed partial output: %v", err)
	}

	summary, err := Images(testCtx, testRequest(archive, out, "00"))
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if summary.Files != 2 {
		t.Errorf("files = %d, want 2 remaining frames", summary.Files)
	}

	// The pre-existing artifact is untouched, not re-decoded.
	data, err := os.ReadFile(pre)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "already done" {
		t.Error("resume must not rewrite existing artifacts")
	}
}

func TestImagesDecodeFailureDoesNotAbortLoop(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{
		numFrame: 3,
		corrupt:  map[string][]int{"00": {1}},
	})
	out := t.TempDir()

	summary, err := Images(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}
	// 3 cameras x 3 frames minus the one corrupt frame.
	if summary.Files != 8 {
		t.Errorf("files = %d, want 8", summary.Files)
	}
	// Frames after the corrupt one still extract.
	if !destExists(filepath.Join(out, "images", "cam_00", "frame_000002.jpg")) {
		t.Error("frame after the corrupt one must still extract")
	}
	// Other cameras are unaffected.
	if !destExists(filepath.Join(out, "images", "cam_25", "frame_000001.jpg")) {
		t.Error("other cameras must be unaffected")
	}
}

func TestMasksWriteSingleChannelPNGs(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 2})
	out := t.TempDir()

	summary, err := Masks(testCtx, testRequest(archive, out, "12"))
	if err != nil {
		t.Fatalf("Masks: %v", err)
	}
	if summary.Files != 2 {
		t.Errorf("files = %d, want 2", summary.Files)
	}
	if !destExists(filepath.Join(out, "masks", "cam_12", "frame_000001.png")) {
		t.Error("mask output missing")
	}
}
