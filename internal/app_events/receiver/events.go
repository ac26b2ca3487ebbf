package receiver

import (
	appevents "github.com/rescp17/peerdrop/internal/app_events"
)

// FileSavedMsg is sent after a received artifact was written to disk.
type FileSavedMsg struct {
	appevents.UIMessage
	Name string
	Path string
	Size int64
	// Checksum is set when the sender announced one and the saved copy
	// matched it.
	Checksum string
}

var _ appevents.AppUIMessage = FileSavedMsg{}
