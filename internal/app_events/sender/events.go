package sender

import (
	appevents "github.com/rescp17/peerdrop/internal/app_events"
)

// SendFileEvent asks the App to stream the file at Path over the open channel.
type SendFileEvent struct {
	appevents.Event
	Path string
}

// FileSentMsg is sent once the EOF marker for Name went out.
type FileSentMsg struct {
	appevents.UIMessage
	Name string
	Size int64
}

var (
	_ appevents.AppEvent     = SendFileEvent{}
	_ appevents.AppUIMessage = FileSentMsg{}
)
