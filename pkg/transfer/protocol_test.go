package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControl(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Control
		control bool
	}{
		{"filename", "FILENAME:report.pdf", Control{Type: ControlFilename, Value: "report.pdf"}, true},
		{"filename keeps colons", "FILENAME:a:b.txt", Control{Type: ControlFilename, Value: "a:b.txt"}, true},
		{"empty filename", "FILENAME:", Control{Type: ControlFilename, Value: ""}, true},
		{"size", "SIZE:307200", Control{Type: ControlSize, Value: "307200"}, true},
		{"hash", "HASH:abc", Control{Type: ControlHash, Value: "abc"}, true},
		{"eof", "EOF", Control{Type: ControlEOF}, true},
		{"eof prefix", "EOF and more", Control{Type: ControlEOF}, true},
		{"plain text", "hello", Control{}, false},
		{"lowercase is not control", "eof", Control{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseControl(tt.text)
			assert.Equal(t, tt.control, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("307200")
	require.NoError(t, err)
	assert.Equal(t, int64(307200), n)

	n, err = ParseSize("0")
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := ParseSize(bad)
		assert.ErrorIs(t, err, ErrMalformedControl, "value %q", bad)
	}
}

func TestControlBuilders(t *testing.T) {
	assert.Equal(t, "FILENAME:x.bin", filenameMessage("x.bin"))
	assert.Equal(t, "SIZE:42", sizeMessage(42))
	assert.Equal(t, "HASH:ff", hashMessage("ff"))
}
