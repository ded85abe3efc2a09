package smc

import (
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"capstan/internal/services"
)

func TestKeypoints2dPresent(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "s1_all", 2))

	points, found, err := archive.Keypoints2d("25", 0)
	if err != nil {
		t.Fatalf("Keypoints2d: %v", err)
	}
	if !found {
		t.Fatal("expected detections for camera 25 frame 0")
	}
	rows, cols := points.Dims()
	if rows != 4 || cols != 2 {
		t.Errorf("dims = %dx%d", rows, cols)
	}
	if points.At(0, 1) != 20 {
		t.Errorf("points[0][1] = %v", points.At(0, 1))
	}
}

func TestKeypoints2dUndetectedFrameReportsAbsent(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "s1_all", 2))

	// Camera 25 only has frame 0 detections; frame 1 is an occlusion case.
	_, found, err := archive.Keypoints2d("25", 1)
	if err != nil {
		t.Fatalf("Keypoints2d: %v", err)
	}
	if found {
		t.Fatal("expected ok=false for undetected frame")
	}

	// Camera 20 is in detector range but has no detections at all.
	_, found, err = archive.Keypoints2d("20", 0)
	if err != nil {
		t.Fatalf("Keypoints2d no-detection camera: %v", err)
	}
	if found {
		t.Fatal("expected ok=false for camera with no detections")
	}
}

func TestKeypoints2dOutsideDetectorRangeIsValidationError(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "s1_all", 2))
	for _, camID := range []string{"00", "12", "33"} {
		if _, _, err := archive.Keypoints2d(camID, 0); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Keypoints2d(%s): expected ErrValidation, got %v", camID, err)
		}
	}
}

func TestKeypoints3dRoundTrip(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "s1_all", 2))

	points, found, err := archive.Keypoints3d(0)
	if err != nil || !found {
		t.Fatalf("Keypoints3d: found=%v err=%v", found, err)
	}
	rows, cols := points.Dims()
	if rows != 4 || cols != 3 {
		t.Errorf("dims = %dx%d", rows, cols)
	}

	frames, err := archive.Keypoints3dFrames()
	if err != nil {
		t.Fatalf("Keypoints3dFrames: %v", err)
	}
	if len(frames) != 1 || frames[0] != 0 {
		t.Errorf("frames = %v", frames)
	}
}

func TestExpressionAccessorsGatedOnSpeechArchive(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "s1_all", 2))

	if _, found, err := archive.FLAME(0); err != nil || found {
		t.Errorf("FLAME on speech archive: found=%v err=%v", found, err)
	}
	if _, found, err := archive.UVTexture(0); err != nil || found {
		t.Errorf("UVTexture on speech archive: found=%v err=%v", found, err)
	}
	if _, found, err := archive.Scan(); err != nil || found {
		t.Errorf("Scan on speech archive: found=%v err=%v", found, err)
	}
	if _, found, err := archive.ScanMask("00"); err != nil || found {
		t.Errorf("ScanMask on speech archive: found=%v err=%v", found, err)
	}
}

func TestAudioGatedOnExpressionArchive(t *testing.T) {
	archive := openArchive(t, buildArchive(t, "e0", 1))
	if _, found, err := archive.Audio(); err != nil || found {
		t.Errorf("Audio on expression archive: found=%v err=%v", found, err)
	}
}

func buildExpressionArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0026_e0_anno.smc")
	builder, err := NewBuilder(path, testArchiveInfo("e0"), testActorInfo(), testCameraInfo(3))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	defer builder.Close()

	flame := FLAMEFrame{
		Shape:       []float64{0.1, 0.2, 0.3},
		Expression:  []float64{0.4, 0.5},
		Pose:        []float64{0, 0, 0, 0.1, 0, 0},
		Translation: []float64{0.01, 0.02, 0.03},
		Vertices:    mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Texture:     []float64{0.9},
	}
	if err := builder.AddFLAME(0, flame); err != nil {
		t.Fatalf("AddFLAME: %v", err)
	}
	if err := builder.AddUVTexture(0, encodeJPEG(t, solidImage(4, 4, color.RGBA{R: 128, G: 30, B: 30, A: 255}))); err != nil {
		t.Fatalf("AddUVTexture: %v", err)
	}
	if err := builder.SetScan(ScanMesh{
		Vertices: mat.NewDense(3, 3, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}),
		Faces:    []int32{0, 1, 2},
	}); err != nil {
		t.Fatalf("SetScan: %v", err)
	}
	if err := builder.AddScanMask("12", encodePNG(t, solidImage(4, 4, color.RGBA{R: 255, A: 255}))); err != nil {
		t.Fatalf("AddScanMask: %v", err)
	}
	return path
}

func TestExpressionModalitiesRoundTrip(t *testing.T) {
	archive := openArchive(t, buildExpressionArchive(t))

	flame, found, err := archive.FLAME(0)
	if err != nil || !found {
		t.Fatalf("FLAME: found=%v err=%v", found, err)
	}
	if len(flame.Shape) != 3 || flame.Shape[2] != 0.3 {
		t.Errorf("shape = %v", flame.Shape)
	}
	if rows, cols := flame.Vertices.Dims(); rows != 2 || cols != 3 {
		t.Errorf("vertex dims = %dx%d", rows, cols)
	}

	// Frame 1 was never fitted.
	if _, found, err := archive.FLAME(1); err != nil || found {
		t.Errorf("FLAME(1): found=%v err=%v", found, err)
	}

	texture, found, err := archive.UVTexture(0)
	if err != nil || !found || len(texture) == 0 {
		t.Fatalf("UVTexture: found=%v len=%d err=%v", found, len(texture), err)
	}

	mesh, found, err := archive.Scan()
	if err != nil || !found {
		t.Fatalf("Scan: found=%v err=%v", found, err)
	}
	if rows, _ := mesh.Vertices.Dims(); rows != 3 {
		t.Errorf("scan vertices = %d rows", rows)
	}
	if len(mesh.Faces) != 3 {
		t.Errorf("faces = %v", mesh.Faces)
	}

	mask, found, err := archive.ScanMask("12")
	if err != nil || !found || len(mask) == 0 {
		t.Fatalf("ScanMask: found=%v err=%v", found, err)
	}
	if _, found, _ := archive.ScanMask("00"); found {
		t.Error("ScanMask(00) should be absent")
	}

	cameras, err := archive.ScanMaskCameras()
	if err != nil || len(cameras) != 1 || cameras[0] != "12" {
		t.Errorf("ScanMaskCameras = %v, %v", cameras, err)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0026_s1_all_anno.smc")
	builder, err := NewBuilder(path, testArchiveInfo("s1_all"), testActorInfo(), testCameraInfo(1))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	samples := []int16{0, 100, -100, 32000, -32000}
	if err := builder.SetAudio(AudioClip{Samples: samples, SampleRate: 48000}); err != nil {
		t.Fatalf("SetAudio: %v", err)
	}
	if err := builder.Close(); err != nil {
		t.Fatalf("close builder: %v", err)
	}

	archive := openArchive(t, path)
	clip, found, err := archive.Audio()
	if err != nil || !found {
		t.Fatalf("Audio: found=%v err=%v", found, err)
	}
	if clip.SampleRate != 48000 || len(clip.Samples) != len(samples) {
		t.Fatalf("clip = rate %d, %d samples", clip.SampleRate, len(clip.Samples))
	}
	for i, sample := range samples {
		if clip.Samples[i] != sample {
			t.Errorf("samples[%d] = %d, want %d", i, clip.Samples[i], sample)
		}
	}
}
