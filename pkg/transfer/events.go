package transfer

// Direction tells whether a transfer is leaving or arriving at this peer.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// Event is a marker interface for the observable events of a transfer.
type Event interface {
	isTransferEvent()
}

type event struct{}

func (event) isTransferEvent() {}

// Started is emitted when metadata has been sent or first observed.
type Started struct {
	event
	Direction Direction
	Name      string
	Size      int64
}

// Progressed is emitted after every payload chunk.
type Progressed struct {
	event
	Direction Direction
	Bytes     int64
	Size      int64
}

// Renamed is emitted when the file name changes after Started.
type Renamed struct {
	event
	Direction Direction
	Name      string
}

// Completed is emitted once the terminator has been sent or verified.
type Completed struct {
	event
	Direction Direction
	Name      string
	Size      int64
}

// Discarded is emitted when a transfer is dropped without completing.
type Discarded struct {
	event
	Direction Direction
	Reason    error
}
