// Package progress derives the user-visible status of a peer from the events
// emitted by the negotiation and transfer layers. Nothing in here mutates
// session or transfer state.
package progress

import (
	"fmt"

	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/transfer"
)

const (
	StatusWaiting      = "Waiting for connection..."
	StatusConnecting   = "Connecting..."
	StatusAnswering    = "Answering connection request..."
	StatusNegotiated   = "Negotiated, opening channel..."
	StatusConnected    = "Connection established!"
	StatusClosed       = "Connection closed."
	StatusFileSent     = "File sent!"
	StatusFileReceived = "File received!"
)

// Snapshot is the read-only state handed to the UI.
type Snapshot struct {
	Status           string
	Role             negotiation.Role
	Connected        bool
	Direction        transfer.Direction
	FileName         string
	BytesTransferred int64
	TotalSize        int64
	Percent          float64
	Complete         bool
	InProgress       bool
}

// Percent returns the completion percentage clamped to [0, 100]. A finished
// transfer is 100% regardless of the arithmetic.
func Percent(transferred, total int64, complete bool) float64 {
	if complete {
		return 100
	}
	if total <= 0 || transferred <= 0 {
		return 0
	}
	p := 100 * float64(transferred) / float64(total)
	if p > 100 {
		return 100
	}
	return p
}

// Tracker folds events into a Snapshot. It is owned by the peer's event loop.
type Tracker struct {
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Status: StatusWaiting}}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	return t.snap
}

// Apply folds one negotiation.Notice or transfer.Event into the state and
// returns the new snapshot. Unknown values are ignored.
func (t *Tracker) Apply(ev any) Snapshot {
	switch e := ev.(type) {
	case negotiation.RoleAssigned:
		t.snap.Role = e.Role
		if e.Role == negotiation.RoleOfferer {
			t.snap.Status = StatusConnecting
		} else {
			t.snap.Status = StatusAnswering
		}
	case negotiation.StateChanged:
		if e.To == negotiation.StateStable && !t.snap.Connected {
			t.snap.Status = StatusNegotiated
		}
	case negotiation.ChannelOpened:
		t.snap.Connected = true
		t.snap.Status = StatusConnected
	case negotiation.ChannelClosed:
		t.snap.Connected = false
		t.snap.Status = StatusClosed
		if t.snap.InProgress {
			t.clearTransfer()
		}

	case transfer.Started:
		t.clearTransfer()
		t.snap.InProgress = true
		t.snap.Direction = e.Direction
		t.snap.FileName = e.Name
		t.snap.TotalSize = e.Size
		if e.Direction == transfer.DirectionOutgoing {
			t.snap.Status = fmt.Sprintf("Sending %s...", e.Name)
		} else {
			t.snap.Status = fmt.Sprintf("Receiving %s...", e.Name)
		}
	case transfer.Renamed:
		t.snap.FileName = e.Name
		if t.snap.InProgress && e.Direction == transfer.DirectionIncoming {
			t.snap.Status = fmt.Sprintf("Receiving %s...", e.Name)
		}
	case transfer.Progressed:
		t.snap.BytesTransferred = e.Bytes
		t.snap.TotalSize = e.Size
		t.bumpPercent(Percent(e.Bytes, e.Size, false))
	case transfer.Completed:
		t.snap.InProgress = false
		t.snap.Complete = true
		t.snap.FileName = e.Name
		t.snap.BytesTransferred = e.Size
		t.snap.TotalSize = e.Size
		t.snap.Percent = 100
		if e.Direction == transfer.DirectionOutgoing {
			t.snap.Status = StatusFileSent
		} else {
			t.snap.Status = StatusFileReceived
		}
	case transfer.Discarded:
		t.clearTransfer()
		t.snap.Status = fmt.Sprintf("Transfer failed: %v", e.Reason)
	}
	return t.snap
}

// bumpPercent keeps the percentage non-decreasing within one transfer.
func (t *Tracker) bumpPercent(p float64) {
	if p > t.snap.Percent {
		t.snap.Percent = p
	}
}

func (t *Tracker) clearTransfer() {
	t.snap.InProgress = false
	t.snap.Complete = false
	t.snap.FileName = ""
	t.snap.BytesTransferred = 0
	t.snap.TotalSize = 0
	t.snap.Percent = 0
}
