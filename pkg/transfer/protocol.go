package transfer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Control message tokens. They travel as text channel messages and must be
// preserved exactly for interoperability.
const (
	FilenamePrefix = "FILENAME:"
	SizePrefix     = "SIZE:"
	HashPrefix     = "HASH:"
	EOFToken       = "EOF"
)

// ControlType identifies a control message.
type ControlType int

const (
	ControlFilename ControlType = iota + 1
	ControlSize
	ControlHash
	ControlEOF
)

func (t ControlType) String() string {
	switch t {
	case ControlFilename:
		return "filename"
	case ControlSize:
		return "size"
	case ControlHash:
		return "hash"
	case ControlEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Control is a parsed control message. Value is the raw text after the prefix.
type Control struct {
	Type  ControlType
	Value string
}

// Channel is the sending half of an open, ordered, reliable message channel.
// Text messages carry control tokens; binary messages carry payload.
type Channel interface {
	SendText(s string) error
	Send(data []byte) error
}

// BufferedChannel is implemented by channels that expose how many bytes are
// queued but not yet handed to the network.
type BufferedChannel interface {
	Channel
	BufferedAmount() uint64
}

// Message is one message received from the channel.
type Message struct {
	IsString bool
	Data     []byte
}

// TextMessage builds an incoming text message.
func TextMessage(s string) Message {
	return Message{IsString: true, Data: []byte(s)}
}

// BinaryMessage builds an incoming binary message.
func BinaryMessage(b []byte) Message {
	return Message{Data: b}
}

var ErrMalformedControl = errors.New("malformed control message")

// ParseControl classifies a text message. Any text starting with one of the
// control prefixes is control, never file content.
func ParseControl(text string) (Control, bool) {
	switch {
	case strings.HasPrefix(text, FilenamePrefix):
		return Control{Type: ControlFilename, Value: strings.TrimPrefix(text, FilenamePrefix)}, true
	case strings.HasPrefix(text, SizePrefix):
		return Control{Type: ControlSize, Value: strings.TrimPrefix(text, SizePrefix)}, true
	case strings.HasPrefix(text, HashPrefix):
		return Control{Type: ControlHash, Value: strings.TrimPrefix(text, HashPrefix)}, true
	case strings.HasPrefix(text, EOFToken):
		return Control{Type: ControlEOF}, true
	}
	return Control{}, false
}

// ParseSize decodes the value of a SIZE control message.
func ParseSize(value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %v", ErrMalformedControl, value, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrMalformedControl, n)
	}
	return n, nil
}

func filenameMessage(name string) string {
	return FilenamePrefix + name
}

func sizeMessage(size int64) string {
	return SizePrefix + strconv.FormatInt(size, 10)
}

func hashMessage(sum string) string {
	return HashPrefix + sum
}
