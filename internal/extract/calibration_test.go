package extract

import (
	"archive/zip"
	"path/filepath"
	"testing"
)

func npzMembers(t *testing.T, path string) map[string]bool {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open npz %s: %v", path, err)
	}
	defer reader.Close()
	members := make(map[string]bool, len(reader.File))
	for _, file := range reader.File {
		members[file.Name] = true
	}
	return members
}

func TestCalibrationFiltersAbsentCameras(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{cameras: []string{"00", "12", "25"}})
	out := t.TempDir()

	// Camera 06 is requested but was never captured.
	summary, err := Calibration(testCtx, testRequest(archive, out, "00", "06", "12"))
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	if summary.CamerasExtracted != 2 {
		t.Errorf("cameras extracted = %d, want 2", summary.CamerasExtracted)
	}

	if !destExists(filepath.Join(out, "calibration", "cam_00.npz")) {
		t.Error("cam_00.npz missing")
	}
	if !destExists(filepath.Join(out, "calibration", "cam_12.npz")) {
		t.Error("cam_12.npz missing")
	}
	if destExists(filepath.Join(out, "calibration", "cam_06.npz")) {
		t.Error("cam_06.npz must not exist for an uncaptured camera")
	}

	members := npzMembers(t, filepath.Join(out, "calibration", "all_cameras.npz"))
	for _, want := range []string{"cam_00_D.npy", "cam_00_K.npy", "cam_00_RT.npy", "cam_12_RT.npy"} {
		if !members[want] {
			t.Errorf("all_cameras.npz missing %s", want)
		}
	}
	for member := range members {
		if member == "cam_06_D.npy" || member == "cam_06_K.npy" || member == "cam_06_RT.npy" {
			t.Errorf("all_cameras.npz contains uncaptured camera member %s", member)
		}
	}
}

func TestCalibrationDefaultsToAllCapturedCameras(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{cameras: []string{"00", "12"}})
	out := t.TempDir()

	summary, err := Calibration(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	if summary.CamerasExtracted != 2 {
		t.Errorf("cameras extracted = %d, want 2", summary.CamerasExtracted)
	}
}

func TestCalibrationIdempotent(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{})
	out := t.TempDir()

	first, err := Calibration(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Calibration(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Files != 0 {
		t.Errorf("second run wrote %d files, want 0", second.Files)
	}
	if second.Skipped != first.Files {
		t.Errorf("second run skipped %d, want %d", second.Skipped, first.Files)
	}
}
