package transfer

import (
	"errors"
	"time"
)

// Config holds all configuration for the chunked transfer protocol.
type Config struct {
	// Chunk configuration
	ChunkSize    int `json:"chunk_size"`     // Size of each payload message
	MaxChunkSize int `json:"max_chunk_size"` // Maximum allowed chunk size
	MinChunkSize int `json:"min_chunk_size"` // Minimum allowed chunk size

	// Pacing. PaceInterval is the pause between two chunks; zero still yields
	// to the event loop between chunks.
	PaceInterval time.Duration `json:"pace_interval"`
	// MaxBufferedAmount pauses sending while the channel reports more queued
	// bytes than this. Zero disables the check.
	MaxBufferedAmount uint64 `json:"max_buffered_amount"`

	// Receiver limits
	MaxFileSize int64 `json:"max_file_size"`

	// SendChecksum adds a HASH control message before EOF. Peers that do not
	// understand it would treat it as payload, so it is off by default.
	SendChecksum bool `json:"send_checksum"`
}

const (
	DefaultChunkSize    = 128 * 1024 // 128KB
	MaxChunkSize        = 256 * 1024 // 256KB - the largest message SCTP implementations agree on
	MinChunkSize        = 1024       // 1KB
	DefaultPaceInterval = 50 * time.Millisecond
	DefaultMaxBuffered  = 4 * 1024 * 1024
	DefaultMaxFileSize  = 2 * 1024 * 1024 * 1024 // 2GB, the whole file is held in memory
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:         DefaultChunkSize,
		MaxChunkSize:      MaxChunkSize,
		MinChunkSize:      MinChunkSize,
		PaceInterval:      DefaultPaceInterval,
		MaxBufferedAmount: DefaultMaxBuffered,
		MaxFileSize:       DefaultMaxFileSize,
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.MinChunkSize <= 0 {
		return errors.New("min_chunk_size must be positive")
	}
	if c.MaxChunkSize <= 0 {
		return errors.New("max_chunk_size must be positive")
	}
	if c.MinChunkSize > c.MaxChunkSize {
		return errors.New("min_chunk_size cannot be greater than max_chunk_size")
	}
	if c.ChunkSize < c.MinChunkSize {
		return errors.New("chunk_size cannot be less than min_chunk_size")
	}
	if c.ChunkSize > c.MaxChunkSize {
		return errors.New("chunk_size cannot be greater than max_chunk_size")
	}
	if c.PaceInterval < 0 {
		return errors.New("pace_interval cannot be negative")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("max_file_size must be positive")
	}
	return nil
}

// IsValidChunkSize checks if a chunk size is within acceptable bounds
func (c *Config) IsValidChunkSize(chunkSize int) bool {
	return chunkSize >= c.MinChunkSize && chunkSize <= c.MaxChunkSize
}
