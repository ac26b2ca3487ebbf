package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is used when a received name has nothing usable left after
// sanitising.
const DefaultFileName = "received-file"

// maxSuffix bounds the search for a free "name (n).ext" slot.
const maxSuffix = 10000

var ErrNoFreeName = errors.New("no free file name available")

func CheckDirectory(path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// SafeBaseName reduces a peer-supplied name to a plain file name so it can
// never escape the output directory.
func SafeBaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return DefaultFileName
	}
	return name
}

// UniquePath returns a path inside dir for name that does not exist yet,
// appending " (1)", " (2)" ... before the extension when needed.
func UniquePath(dir, name string) (string, error) {
	name = SafeBaseName(name)
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxSuffix; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreeName, name)
}

// SaveFile writes data into dir under a unique version of name and returns
// the final path. dir is created if missing.
func SaveFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	exists, isDir, err := CheckDirectory(dir)
	if err != nil {
		return "", fmt.Errorf("failed to inspect output directory: %w", err)
	}
	if exists && !isDir {
		return "", fmt.Errorf("output path %s is not a directory", dir)
	}
	if !exists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	path, err := UniquePath(dir, name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
