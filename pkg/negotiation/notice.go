package negotiation

// Notice is a marker interface for the observable events a Session emits.
type Notice interface {
	isNotice()
}

type notice struct{}

func (notice) isNotice() {}

// RoleAssigned is emitted once, on the first handshake action.
type RoleAssigned struct {
	notice
	Role Role
}

// StateChanged is emitted on every signaling transition.
type StateChanged struct {
	notice
	From SignalingState
	To   SignalingState
}

// ChannelOpened is emitted when the data channel becomes usable.
type ChannelOpened struct {
	notice
}

// ChannelClosed is emitted when the Session is torn down.
type ChannelClosed struct {
	notice
	WasConnected bool
}
