package transfer

import (
	"fmt"
	"io"
)

type Chunk struct {
	SequenceNo uint32
	Offset     int64 // File offset
	Data       []byte
	IsLast     bool
}

// Chunker slices an in-memory file into consecutive windows of at most
// chunkSize bytes. The returned Data aliases the buffer and must not be modified.
type Chunker struct {
	data       []byte
	chunkSize  int
	currentSeq uint32
	offset     int64
}

// NewChunker creates a Chunker over data.
func NewChunker(data []byte, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return &Chunker{
		data:      data,
		chunkSize: chunkSize,
	}, nil
}

// Next returns the next window, or io.EOF once offset has reached the end.
func (c *Chunker) Next() (*Chunk, error) {
	total := int64(len(c.data))
	if c.offset >= total {
		return nil, io.EOF
	}

	end := c.offset + int64(c.chunkSize)
	if end > total {
		end = total
	}
	c.currentSeq++
	chunk := &Chunk{
		SequenceNo: c.currentSeq,
		Offset:     c.offset,
		Data:       c.data[c.offset:end],
		IsLast:     end >= total,
	}
	c.offset = end
	return chunk, nil
}

// Offset is the number of bytes handed out so far.
func (c *Chunker) Offset() int64 {
	return c.offset
}

// TotalSize is the size of the underlying buffer.
func (c *Chunker) TotalSize() int64 {
	return int64(len(c.data))
}

// ChunkCount returns how many payload messages a file of size bytes needs.
func ChunkCount(size int64, chunkSize int) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}
