package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/rescp17/peerdrop/pkg/fileInfo"
)

var (
	ErrNotStarted     = errors.New("transfer not started")
	ErrAlreadyStarted = errors.New("transfer already started")
)

// Sender streams one in-memory file over a channel: metadata, payload chunks,
// then the terminator. It performs exactly one send per Step so the caller
// decides when control is yielded between chunks.
type Sender struct {
	ch       Channel
	cfg      *Config
	name     string
	chunker  *Chunker
	checksum string
	started  bool
	done     bool
	chunks   int
	observer func(Event)
}

// SenderOption customises a Sender.
type SenderOption func(*Sender)

// WithChecksum supplies the hex SHA-256 of the data when the caller already
// has it, so the Sender does not hash the buffer again.
func WithChecksum(sum string) SenderOption {
	return func(s *Sender) { s.checksum = sum }
}

// NewSender prepares a transfer of data under the given file name.
func NewSender(ch Channel, name string, data []byte, cfg *Config, opts ...SenderOption) (*Sender, error) {
	if ch == nil {
		return nil, errors.New("channel is not open")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}
	chunker, err := NewChunker(data, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	s := &Sender{
		ch:      ch,
		cfg:     cfg,
		name:    name,
		chunker: chunker,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cfg.SendChecksum {
		s.checksum = ""
	} else if s.checksum == "" {
		s.checksum = fileInfo.SumBytes(data)
	}
	return s, nil
}

// OnEvent registers the observer for this transfer's events.
func (s *Sender) OnEvent(f func(Event)) {
	s.observer = f
}

func (s *Sender) Name() string { return s.name }
func (s *Sender) TotalSize() int64 { return s.chunker.TotalSize() }
func (s *Sender) Offset() int64 { return s.chunker.Offset() }
func (s *Sender) Started() bool { return s.started }
func (s *Sender) Done() bool { return s.done }
func (s *Sender) ChunksSent() int { return s.chunks }

// Start sends FILENAME and SIZE. It must precede any Step.
func (s *Sender) Start() error {
	if s.started {
		return ErrAlreadyStarted
	}
	if err := s.ch.SendText(filenameMessage(s.name)); err != nil {
		return fmt.Errorf("send filename: %w", err)
	}
	if err := s.ch.SendText(sizeMessage(s.TotalSize())); err != nil {
		return fmt.Errorf("send size: %w", err)
	}
	s.started = true
	slog.Info("Sending file", "name", s.name, "size", s.TotalSize(),
		"chunk_size", s.cfg.ChunkSize, "chunks", ChunkCount(s.TotalSize(), s.cfg.ChunkSize))
	s.emit(Started{Direction: DirectionOutgoing, Name: s.name, Size: s.TotalSize()})
	return nil
}

// Step sends the next chunk, or the terminator once every byte is out, and
// reports whether the transfer is complete. While the channel's send buffer is
// above the configured high-water mark Step sends nothing.
func (s *Sender) Step() (bool, error) {
	if !s.started {
		return false, ErrNotStarted
	}
	if s.done {
		return true, nil
	}
	if s.congested() {
		return false, nil
	}

	chunk, err := s.chunker.Next()
	if errors.Is(err, io.EOF) {
		return true, s.finish()
	}
	if err != nil {
		return false, err
	}

	if err := s.ch.Send(chunk.Data); err != nil {
		return false, fmt.Errorf("send chunk %d: %w", chunk.SequenceNo, err)
	}
	s.chunks++
	slog.Debug("Sent chunk", "seq", chunk.SequenceNo, "bytes", len(chunk.Data), "offset", s.Offset())
	s.emit(Progressed{Direction: DirectionOutgoing, Bytes: s.Offset(), Size: s.TotalSize()})
	return false, nil
}

func (s *Sender) finish() error {
	if s.checksum != "" {
		if err := s.ch.SendText(hashMessage(s.checksum)); err != nil {
			return fmt.Errorf("send checksum: %w", err)
		}
	}
	if err := s.ch.SendText(EOFToken); err != nil {
		return fmt.Errorf("send terminator: %w", err)
	}
	s.done = true
	slog.Info("File transfer complete", "name", s.name, "chunks", s.chunks)
	s.emit(Completed{Direction: DirectionOutgoing, Name: s.name, Size: s.TotalSize()})
	return nil
}

func (s *Sender) congested() bool {
	if s.cfg.MaxBufferedAmount == 0 {
		return false
	}
	bc, ok := s.ch.(BufferedChannel)
	if !ok {
		return false
	}
	if amount := bc.BufferedAmount(); amount > s.cfg.MaxBufferedAmount {
		slog.Debug("Channel buffer above high-water mark, holding chunk", "buffered", amount)
		return true
	}
	return false
}

func (s *Sender) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}

// Pump drives s to completion, yielding for pace between chunks. It is the
// standalone counterpart of an event loop re-arming a timer per Step.
func Pump(ctx context.Context, s *Sender, pace time.Duration) error {
	if !s.Started() {
		if err := s.Start(); err != nil {
			return err
		}
	}
	for {
		done, err := s.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := yield(ctx, pace); err != nil {
			return err
		}
	}
}

func yield(ctx context.Context, pace time.Duration) error {
	if pace <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	timer := time.NewTimer(pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
