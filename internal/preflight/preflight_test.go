package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capstan/internal/testsupport"
)

func TestRunAllPassesWithHealthyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunAll(cfg)
	if len(results) == 0 {
		t.Fatal("RunAll returned no results")
	}
	for _, result := range results {
		if !result.Passed {
			t.Errorf("check %q failed: %s", result.Name, result.Detail)
		}
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Workspace", dir)
	if !result.Passed {
		t.Errorf("expected pass for temp dir, got %+v", result)
	}

	result = CheckDirectoryAccess("Workspace", filepath.Join(dir, "absent"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Errorf("expected missing-dir failure, got %+v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result = CheckDirectoryAccess("Workspace", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Errorf("expected non-dir failure, got %+v", result)
	}
}

func TestCheckBinary(t *testing.T) {
	if result := CheckBinary("Shell", "sh"); !result.Passed {
		t.Errorf("sh should resolve, got %+v", result)
	}
	if result := CheckBinary("Bogus", "definitely-not-a-real-binary"); result.Passed {
		t.Errorf("expected failure, got %+v", result)
	}
}

func TestFreeSpaceReportsNonZero(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free == 0 {
		t.Error("free space should be non-zero on a writable temp dir")
	}
}

func TestCheckFreeSpaceFloor(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace(dir, 0); !result.Passed {
		t.Errorf("floor 0 should always pass, got %+v", result)
	}
	// No filesystem has an exbibyte free.
	if result := CheckFreeSpace(dir, 1<<30); result.Passed {
		t.Errorf("absurd floor should fail, got %+v", result)
	}
}
