package extract

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"capstan/internal/smc"
)

func buildExpressionFixture(t *testing.T) *smc.Archive {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0026_e0_anno.smc")
	builder, err := smc.NewBuilder(path,
		smc.ArchiveInfo{SubjectID: "0026", PerformancePart: "e0", CaptureDate: "2021-09-07"},
		smc.ActorInfo{Age: 24, Gender: "female", Height: 165, Weight: 52.5},
		smc.CameraInfo{NumDevice: 60, NumFrame: 10, Resolution: [2]int{64, 48}},
	)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	for frame := 0; frame < 10; frame++ {
		fit := smc.FLAMEFrame{
			Shape:       []float64{float64(frame), 0.2},
			Expression:  []float64{0.4},
			Pose:        []float64{0, 0.1, 0},
			Translation: []float64{0.01, 0.02, 0.03},
			Vertices:    mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
			Texture:     []float64{0.9},
		}
		if err := builder.AddFLAME(frame, fit); err != nil {
			t.Fatalf("AddFLAME: %v", err)
		}
		uv := encodeTestJPEG(t, solidRGBA(4, 4, color.RGBA{R: uint8(20 * frame), G: 30, B: 30, A: 255}))
		if err := builder.AddUVTexture(frame, uv); err != nil {
			t.Fatalf("AddUVTexture: %v", err)
		}
	}
	if err := builder.SetScan(smc.ScanMesh{
		Vertices: mat.NewDense(3, 3, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}),
		Faces:    []int32{0, 1, 2},
	}); err != nil {
		t.Fatalf("SetScan: %v", err)
	}
	if err := builder.AddScanMask("12", encodeTestPNG(t, solidRGBA(4, 4, color.RGBA{R: 255, A: 255}))); err != nil {
		t.Fatalf("AddScanMask: %v", err)
	}
	if err := builder.Close(); err != nil {
		t.Fatalf("close builder: %v", err)
	}

	archive, err := smc.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func TestKeypoints2dWritesDetectorCameras(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 4})
	out := t.TempDir()

	summary, err := Keypoints2d(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Keypoints2d: %v", err)
	}
	// Only camera 25 carries detections in the fixture.
	if summary.CamerasExtracted != 1 || summary.Files != 1 {
		t.Errorf("summary = %+v", summary)
	}
	members := npzMembers(t, filepath.Join(out, "keypoints2d", "cam_25.npz"))
	for _, want := range []string{"frame_000000.npy", "frame_000003.npy"} {
		if !members[want] {
			t.Errorf("cam_25.npz missing %s", want)
		}
	}
}

func TestKeypoints2dAppliesStride(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 6})
	out := t.TempDir()

	req := testRequest(archive, out)
	req.Selection.KeypointStride = 3
	summary, err := Keypoints2d(testCtx, req)
	if err != nil {
		t.Fatalf("Keypoints2d: %v", err)
	}
	if summary.Frames != 2 {
		t.Errorf("frames = %d, want 2 (stride 3 over 6 frames)", summary.Frames)
	}
	members := npzMembers(t, filepath.Join(out, "keypoints2d", "cam_25.npz"))
	if !members["frame_000000.npy"] || !members["frame_000003.npy"] {
		t.Errorf("members = %v", members)
	}
	if members["frame_000001.npy"] {
		t.Error("stride must drop frame 1")
	}
}

func TestKeypoints3dWritesAllFrames(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{numFrame: 4})
	out := t.TempDir()

	summary, err := Keypoints3d(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Keypoints3d: %v", err)
	}
	if summary.Files != 1 || summary.Frames != 4 {
		t.Errorf("summary = %+v", summary)
	}

	again, err := Keypoints3d(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Files != 0 || again.Skipped != 1 {
		t.Errorf("second run = %+v", again)
	}
}

func TestFLAMEAppliesParametricStride(t *testing.T) {
	archive := buildExpressionFixture(t)
	out := t.TempDir()

	req := testRequest(archive, out)
	req.Selection.ParametricStride = 5
	summary, err := FLAME(testCtx, req)
	if err != nil {
		t.Fatalf("FLAME: %v", err)
	}
	if summary.Frames != 2 {
		t.Errorf("frames = %d, want 2 (stride 5 over 10)", summary.Frames)
	}
	members := npzMembers(t, filepath.Join(out, "flame", "all_frames.npz"))
	for _, want := range []string{
		"frame_000000_shape.npy", "frame_000000_vertices.npy",
		"frame_000005_expression.npy", "frame_000005_translation.npy",
	} {
		if !members[want] {
			t.Errorf("all_frames.npz missing %s", want)
		}
	}
}

func TestFLAMESkipsOnSpeechArchive(t *testing.T) {
	archive := buildFixture(t, fixtureOptions{performance: "s1_all"})
	out := t.TempDir()

	summary, err := FLAME(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("FLAME: %v", err)
	}
	if summary.Files != 0 {
		t.Errorf("speech archive must produce no flame output, got %+v", summary)
	}
}

func TestUVTexturesWriteStridedFrames(t *testing.T) {
	archive := buildExpressionFixture(t)
	out := t.TempDir()

	req := testRequest(archive, out)
	req.Selection.TextureStride = 4
	summary, err := UVTextures(testCtx, req)
	if err != nil {
		t.Fatalf("UVTextures: %v", err)
	}
	if summary.Files != 3 {
		t.Errorf("files = %d, want 3 (frames 0,4,8)", summary.Files)
	}
	if !destExists(filepath.Join(out, "uv_textures", "frame_000008.jpg")) {
		t.Error("frame_000008.jpg missing")
	}
}

func TestScanWritesPLY(t *testing.T) {
	archive := buildExpressionFixture(t)
	out := t.TempDir()

	summary, err := Scan(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Files != 1 {
		t.Errorf("files = %d", summary.Files)
	}

	data, err := os.ReadFile(filepath.Join(out, "scan", "mesh.ply"))
	if err != nil {
		t.Fatalf("read ply: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"ply\nformat ascii 1.0\n",
		"element vertex 3\n",
		"element face 1\n",
		"3 0 1 2\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ply missing %q", want)
		}
	}
}

func TestScanMasksCollapseAndFilter(t *testing.T) {
	archive := buildExpressionFixture(t)
	out := t.TempDir()

	summary, err := ScanMasks(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("ScanMasks: %v", err)
	}
	if summary.Files != 1 || summary.CamerasExtracted != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if !destExists(filepath.Join(out, "scan_masks", "cam_12.png")) {
		t.Error("cam_12.png missing")
	}

	// A selection that excludes the only covered camera writes nothing.
	filtered := t.TempDir()
	summary, err = ScanMasks(testCtx, testRequest(archive, filtered, "00"))
	if err != nil {
		t.Fatalf("ScanMasks filtered: %v", err)
	}
	if summary.Files != 0 {
		t.Errorf("filtered summary = %+v", summary)
	}
}

func TestAudioWritesWavAndSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0026_s1_all_anno.smc")
	builder, err := smc.NewBuilder(path,
		smc.ArchiveInfo{SubjectID: "0026", PerformancePart: "s1_all", CaptureDate: "2021-09-07"},
		smc.ActorInfo{Age: 24, Gender: "female"},
		smc.CameraInfo{NumDevice: 60, NumFrame: 1, Resolution: [2]int{64, 48}},
	)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if err := builder.SetAudio(smc.AudioClip{
		Samples:    []int16{0, 1000, -1000, 30000},
		SampleRate: 48000,
	}); err != nil {
		t.Fatalf("SetAudio: %v", err)
	}
	if err := builder.Close(); err != nil {
		t.Fatalf("close builder: %v", err)
	}
	archive, err := smc.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	out := t.TempDir()
	summary, err := Audio(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	if summary.Files != 2 {
		t.Errorf("files = %d, want wav + sidecar", summary.Files)
	}
	if !destExists(filepath.Join(out, "audio", "audio.wav")) {
		t.Error("audio.wav missing")
	}
	if !destExists(filepath.Join(out, "audio", "samples.npy")) {
		t.Error("samples.npy missing")
	}

	again, err := Audio(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Files != 0 || again.Skipped != 2 {
		t.Errorf("second run = %+v", again)
	}
}

func TestAudioSkipsExpressionArchive(t *testing.T) {
	archive := buildExpressionFixture(t)
	out := t.TempDir()
	summary, err := Audio(testCtx, testRequest(archive, out))
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	if summary.Files != 0 {
		t.Errorf("expression archive must produce no audio, got %+v", summary)
	}
}
