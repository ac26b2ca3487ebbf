package fileInfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	content := []byte("hello peerdrop\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	node, err := CreateNode(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", node.Name)
	assert.Equal(t, int64(len(content)), node.Size)
	assert.Contains(t, node.MimeType, "text/plain")
	assert.Empty(t, node.Checksum)

	sum, err := node.CalcChecksum()
	require.NoError(t, err)
	assert.Equal(t, SumBytes(content), sum)
	assert.Equal(t, sum, node.Checksum)

	data, err := node.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestCreateNode_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateNode(dir)
	assert.ErrorIs(t, err, ErrIsDir)

	_, err = CreateNode(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadAll_FileChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.bin")
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o644))
	node, err := CreateNode(path)
	require.NoError(t, err)
	_, err = node.CalcChecksum()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0o644))
	data, err := node.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, int64(4), node.Size)
	assert.Equal(t, SumBytes(data), node.Checksum)
}

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	node := FileNode{Path: path}

	ok, err := node.VerifySHA256("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = node.VerifySHA256("deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSumBytes(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SumBytes(nil))
}
