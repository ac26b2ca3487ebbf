package appevents

import "github.com/rescp17/peerdrop/pkg/progress"

// AppEvent is a marker interface for events sent from the TUI to the App's logic controller.
// It uses an unexported method to ensure that only types from this package (by embedding Event)
// can satisfy the interface.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded in other event types to satisfy the AppEvent interface.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App's logic controller to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded in other types to implement the AppUIMessage interface.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// --- App Events (from TUI to App) ---

// InitiateEvent asks the App to start the handshake as the offering peer.
type InitiateEvent struct {
	Event
}

// CloseEvent asks the App to tear the connection down.
type CloseEvent struct {
	Event
}

// --- UI Messages (from App to TUI) ---

// SnapshotMsg carries the latest derived status.
type SnapshotMsg struct {
	UIMessage
	Snapshot progress.Snapshot
}

// AppErrorMsg reports an error the user should see.
type AppErrorMsg struct {
	UIMessage
	Err error
}

var (
	_ AppEvent     = InitiateEvent{}
	_ AppEvent     = CloseEvent{}
	_ AppUIMessage = SnapshotMsg{}
	_ AppUIMessage = AppErrorMsg{}
)
