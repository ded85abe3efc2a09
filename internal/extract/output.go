package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
)

// destExists reports whether an artifact is already on disk from a previous
// run. Extractors must consult this before any decode.
func destExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeFileAtomic writes data via a temp file and rename, so the existence
// of a destination always implies a complete artifact.
func writeFileAtomic(path string, data []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("finalize %s: %w", path, err)
	}
	return int64(len(data)), nil
}

// npzEntry is one named array inside an .npz output.
type npzEntry struct {
	Name  string
	Value any
}

// encodeNPZ renders entries as a zip of .npy members, the layout numpy's
// savez produces.
func encodeNPZ(entries []npzEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name + ".npy")
		if err != nil {
			return nil, fmt.Errorf("npz member %s: %w", entry.Name, err)
		}
		if err := npyio.Write(w, entry.Value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize npz: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeNPY renders one array in NumPy's .npy format.
func encodeNPY(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := npyio.Write(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TreeSize totals the regular file bytes under root. A missing root is zero.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("size tree %s: %w", root, err)
	}
	return total, nil
}
