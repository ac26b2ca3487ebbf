package transfer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rescp17/peerdrop/pkg/fileInfo"
)

// DefaultReceivedName is used when the sender never announced a file name.
const DefaultReceivedName = "received-file"

var (
	// ErrChunkBeforeSize: a payload arrived with no progress denominator yet.
	ErrChunkBeforeSize = errors.New("payload chunk received before SIZE")
	// ErrFileTooLarge: the announced size or the payload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrSizeExceeded: EOF arrived after more payload than SIZE announced.
	ErrSizeExceeded = errors.New("received more bytes than announced")
	// ErrIncomplete: EOF arrived but the received byte count does not match SIZE.
	ErrIncomplete = errors.New("transfer incomplete at EOF")
	// ErrChecksumMismatch: the assembled file does not match the announced HASH.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrChannelClosed: the channel went away with a transfer in flight.
	ErrChannelClosed = errors.New("channel closed during transfer")
)

// Artifact is a fully received file. Verified is set when the sender
// announced a HASH and Data matched it.
type Artifact struct {
	Name     string
	Data     []byte
	Checksum string
	Verified bool
}

// Receiver reassembles the message stream of one transfer at a time. It is not
// safe for concurrent use.
type Receiver struct {
	cfg      *Config
	observer func(Event)

	active    bool
	name      string
	expected  int64
	sizeKnown bool
	received  int64
	chunks    [][]byte
	checksum  string
}

// NewReceiver creates a Receiver ready for the first transfer.
func NewReceiver(cfg *Config) *Receiver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Receiver{cfg: cfg}
}

// OnEvent registers the observer for transfer events.
func (r *Receiver) OnEvent(f func(Event)) {
	r.observer = f
}

func (r *Receiver) Active() bool { return r.active }
func (r *Receiver) ExpectedName() string { return r.name }
func (r *Receiver) ExpectedSize() int64 { return r.expected }
func (r *Receiver) ReceivedBytes() int64 { return r.received }
func (r *Receiver) BufferedChunks() int { return len(r.chunks) }

// Handle processes one channel message. It returns the Artifact when msg was
// the terminator of a complete transfer. Errors are non-fatal for the channel:
// the offending message is dropped, and for integrity errors the whole
// transfer is discarded.
func (r *Receiver) Handle(msg Message) (*Artifact, error) {
	if msg.IsString {
		if ctl, ok := ParseControl(string(msg.Data)); ok {
			return r.handleControl(ctl)
		}
	}
	return nil, r.handleChunk(msg.Data)
}

func (r *Receiver) handleControl(ctl Control) (*Artifact, error) {
	switch ctl.Type {
	case ControlFilename:
		changed := r.sizeKnown && ctl.Value != r.name
		r.active = true
		r.name = ctl.Value
		slog.Debug("Received filename", "name", r.name)
		if changed {
			r.emit(Renamed{Direction: DirectionIncoming, Name: r.displayName()})
		}
	case ControlSize:
		size, err := ParseSize(ctl.Value)
		if err != nil {
			slog.Warn("Ignoring malformed SIZE", "error", err)
			return nil, err
		}
		if size > r.cfg.MaxFileSize {
			slog.Warn("Ignoring SIZE above limit", "size", size, "limit", r.cfg.MaxFileSize)
			return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, size, r.cfg.MaxFileSize)
		}
		first := !r.sizeKnown
		r.active = true
		r.expected = size
		r.sizeKnown = true
		if first {
			r.emit(Started{Direction: DirectionIncoming, Name: r.displayName(), Size: size})
		} else {
			r.emit(Progressed{Direction: DirectionIncoming, Bytes: r.received, Size: size})
		}
	case ControlHash:
		r.checksum = ctl.Value
	case ControlEOF:
		return r.assemble()
	}
	return nil, nil
}

func (r *Receiver) handleChunk(data []byte) error {
	if !r.sizeKnown {
		slog.Warn("Rejecting chunk received before SIZE", "bytes", len(data))
		return ErrChunkBeforeSize
	}
	// SIZE is advisory until EOF; only the configured limit bounds memory.
	if r.received+int64(len(data)) > r.cfg.MaxFileSize {
		err := fmt.Errorf("%w: %d + %d > %d", ErrFileTooLarge, r.received, len(data), r.cfg.MaxFileSize)
		r.discard(err)
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	r.chunks = append(r.chunks, buf)
	r.received += int64(len(buf))
	slog.Debug("Received chunk", "bytes", len(buf), "total", r.received)
	r.emit(Progressed{Direction: DirectionIncoming, Bytes: r.received, Size: r.expected})
	return nil
}

func (r *Receiver) assemble() (*Artifact, error) {
	if !r.sizeKnown {
		err := fmt.Errorf("%w: EOF before SIZE", ErrIncomplete)
		r.discard(err)
		return nil, err
	}
	if r.received > r.expected {
		err := fmt.Errorf("%w: got %d of %d bytes", ErrSizeExceeded, r.received, r.expected)
		r.discard(err)
		return nil, err
	}
	if r.received < r.expected {
		err := fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, r.received, r.expected)
		r.discard(err)
		return nil, err
	}

	data := make([]byte, 0, r.received)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	r.chunks = nil

	sum := fileInfo.SumBytes(data)
	if r.checksum != "" && r.checksum != sum {
		err := fmt.Errorf("%w: want %s, got %s", ErrChecksumMismatch, r.checksum, sum)
		r.discard(err)
		return nil, err
	}

	artifact := &Artifact{Name: r.displayName(), Data: data, Checksum: sum, Verified: r.checksum != ""}
	slog.Info("End of file detected, file assembled", "name", artifact.Name, "size", len(data))
	r.emit(Completed{Direction: DirectionIncoming, Name: artifact.Name, Size: int64(len(data))})
	r.reset()
	return artifact, nil
}

// Discard drops any partial transfer, e.g. because the channel closed.
func (r *Receiver) Discard(reason error) {
	if !r.active && !r.sizeKnown && len(r.chunks) == 0 {
		return
	}
	r.discard(reason)
}

func (r *Receiver) discard(reason error) {
	slog.Warn("Discarding partial transfer", "name", r.name, "received", r.received, "reason", reason)
	r.reset()
	r.emit(Discarded{Direction: DirectionIncoming, Reason: reason})
}

func (r *Receiver) reset() {
	r.active = false
	r.name = ""
	r.expected = 0
	r.sizeKnown = false
	r.received = 0
	r.chunks = nil
	r.checksum = ""
}

func (r *Receiver) displayName() string {
	if r.name == "" {
		return DefaultReceivedName
	}
	return r.name
}

func (r *Receiver) emit(ev Event) {
	if r.observer != nil {
		r.observer(ev)
	}
}
