package main

import (
	"testing"

	"github.com/rescp17/peerdrop/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckChunkSize(t *testing.T) {
	cfg := transfer.DefaultConfig()
	assert.NoError(t, checkChunkSize(cfg))

	cfg.ChunkSize = 10
	err := checkChunkSize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--chunk-size 10 is out of range, use 1 KB to 256 KB")
}

func TestSendRejectsBadChunkSizeBeforeDialing(t *testing.T) {
	cmd := newSendCmd()
	cmd.SetArgs([]string{"--plain", "--relay", "127.0.0.1:1", "--chunk-size", "1", "file.txt"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--chunk-size 1 is out of range")
}

func TestSendPlainNeedsFile(t *testing.T) {
	cmd := newSendCmd()
	cmd.SetArgs([]string{"--plain"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.EqualError(t, cmd.Execute(), "--plain requires a file argument")
}
