package fileInfo

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

var ErrIsDir = errors.New("cannot send a directory")

// FileNode describes a single file offered for sending.
type FileNode struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// CreateNode stats path and sniffs its MIME type. The checksum is left empty
// until CalcChecksum is called.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	if info.IsDir() {
		return FileNode{}, fmt.Errorf("%s: %w", path, ErrIsDir)
	}
	node := FileNode{
		Name: info.Name(),
		Size: info.Size(),
		Path: path,
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		node.MimeType = "application/octet-stream"
	} else {
		node.MimeType = mime.String()
	}
	return node, nil
}

// ReadAll loads the whole file into an addressable buffer.
func (n *FileNode) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(n.Path)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n.Size {
		// The file changed since the node was created.
		n.Size = int64(len(data))
		if n.Checksum != "" {
			n.Checksum = SumBytes(data)
		}
	}
	return data, nil
}
