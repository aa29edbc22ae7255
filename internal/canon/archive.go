package canon

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// archiveModTime is stamped on every entry so identical rows give identical bytes.
var archiveModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteArchive writes rows as the only entry innerName of a zip archive at path.
// Parent directories are created; an existing archive is replaced.
func WriteArchive(rows [][]string, path, innerName string) error {
	data, err := EncodeCSV(rows)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     innerName,
		Method:   zip.Deflate,
		Modified: archiveModTime,
	})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", innerName, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", innerName, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", path, err)
	}
	return replaceFile(path, buf.Bytes())
}

// WriteCSVFile writes rows as a plain CSV file, replacing any existing one.
func WriteCSVFile(rows [][]string, path string) error {
	data, err := EncodeCSV(rows)
	if err != nil {
		return err
	}
	return replaceFile(path, data)
}

// ReadArchive returns the inner entry name and content of a single-entry archive.
// Plain .csv files are returned as-is with their base name.
func ReadArchive(path string) (string, []byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", path, err)
		}
		return filepath.Base(path), data, nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		return "", nil, fmt.Errorf("archive %s: want 1 entry, got %d", path, len(zr.File))
	}
	f := zr.File[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return f.Name, data, nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteFile replaces path with data, creating parent directories.
func WriteFile(path string, data []byte) error {
	return replaceFile(path, data)
}
