package preflight

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"capstan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the startup checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckBinary("Transfer binary", cfg.TransferBinary()),
		CheckFreeSpace(cfg.Paths.WorkspaceDir, cfg.Processing.MinFreeSpaceGiB),
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies an external executable is resolvable on PATH.
func CheckBinary(name, binary string) Result {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found on PATH)", binary)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// FreeSpace returns the free bytes available to the caller on the filesystem
// holding path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace compares the free space on path's filesystem against a
// floor in GiB. The orchestrator consults this once per subject.
func CheckFreeSpace(path string, floorGiB int) Result {
	const name = "Free space"
	free, err := FreeSpace(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	freeGiB := float64(free) / (1 << 30)
	detail := fmt.Sprintf("%.1f GiB free, floor %d GiB", freeGiB, floorGiB)
	if free < uint64(floorGiB)*(1<<30) {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
