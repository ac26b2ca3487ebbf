package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "testfile.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name   string
		path   string
		exists bool
		isDir  bool
	}{
		{"existing directory", dir, true, true},
		{"regular file", file, true, false},
		{"missing path", filepath.Join(dir, "nonexistent"), false, false},
		{"current directory", ".", true, true},
		{"empty path", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := CheckDirectory(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}

func TestCheckDirectoryFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	exists, isDir, err := CheckDirectory(link)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, isDir)

	require.NoError(t, os.Remove(target))
	exists, _, err = CheckDirectory(link)
	require.NoError(t, err)
	assert.False(t, exists, "a dangling link is reported as missing")
}

func TestSafeBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"/abs/path/file.txt", "file.txt"},
		{`..\..\windows\win.ini`, "win.ini"},
		{"..", DefaultFileName},
		{"", DefaultFileName},
		{"   ", DefaultFileName},
		{"dir/", "dir"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeBaseName(tt.in))
		})
	}
}

func TestSaveFileAvoidsOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	first, err := SaveFile(dir, "../notes.txt", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "notes.txt"), first)

	second, err := SaveFile(dir, "notes.txt", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "notes (1).txt"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestSaveFileRejectsFileAsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := SaveFile(file, "x", []byte("x"))
	assert.Error(t, err)
}
