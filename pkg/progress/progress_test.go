package progress

import (
	"errors"
	"testing"

	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/transfer"
	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		transferred int64
		total       int64
		complete    bool
		want        float64
	}{
		{"zero total", 10, 0, false, 0},
		{"nothing yet", 0, 100, false, 0},
		{"half", 50, 100, false, 50},
		{"overshoot clamps", 150, 100, false, 100},
		{"complete wins", 1, 100, true, 100},
		{"empty file complete", 0, 0, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.transferred, tt.total, tt.complete))
		})
	}
}

func TestTracker_NegotiationStatus(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, StatusWaiting, tr.Snapshot().Status)

	snap := tr.Apply(negotiation.RoleAssigned{Role: negotiation.RoleOfferer})
	assert.Equal(t, StatusConnecting, snap.Status)
	assert.Equal(t, negotiation.RoleOfferer, snap.Role)

	snap = tr.Apply(negotiation.StateChanged{From: negotiation.StateAnswerReceived, To: negotiation.StateStable})
	assert.Equal(t, StatusNegotiated, snap.Status)

	snap = tr.Apply(negotiation.ChannelOpened{})
	assert.True(t, snap.Connected)
	assert.Equal(t, StatusConnected, snap.Status)

	snap = tr.Apply(negotiation.ChannelClosed{WasConnected: true})
	assert.False(t, snap.Connected)
	assert.Equal(t, StatusClosed, snap.Status)

	answerer := NewTracker().Apply(negotiation.RoleAssigned{Role: negotiation.RoleAnswerer})
	assert.Equal(t, StatusAnswering, answerer.Status)
}

func TestTracker_TransferLifecycle(t *testing.T) {
	tr := NewTracker()

	snap := tr.Apply(transfer.Started{Direction: transfer.DirectionIncoming, Name: "a.txt", Size: 200})
	assert.True(t, snap.InProgress)
	assert.Equal(t, "Receiving a.txt...", snap.Status)
	assert.Equal(t, int64(200), snap.TotalSize)

	snap = tr.Apply(transfer.Progressed{Direction: transfer.DirectionIncoming, Bytes: 100, Size: 200})
	assert.Equal(t, float64(50), snap.Percent)
	assert.Equal(t, int64(100), snap.BytesTransferred)

	snap = tr.Apply(transfer.Completed{Direction: transfer.DirectionIncoming, Name: "a.txt", Size: 200})
	assert.False(t, snap.InProgress)
	assert.True(t, snap.Complete)
	assert.Equal(t, float64(100), snap.Percent)
	assert.Equal(t, StatusFileReceived, snap.Status)

	snap = tr.Apply(transfer.Started{Direction: transfer.DirectionOutgoing, Name: "b.txt", Size: 10})
	assert.False(t, snap.Complete)
	assert.Zero(t, snap.Percent)
	assert.Equal(t, "Sending b.txt...", snap.Status)

	snap = tr.Apply(transfer.Completed{Direction: transfer.DirectionOutgoing, Name: "b.txt", Size: 10})
	assert.Equal(t, StatusFileSent, snap.Status)
}

func TestTracker_RenameKeepsProgress(t *testing.T) {
	tr := NewTracker()
	tr.Apply(transfer.Started{Direction: transfer.DirectionIncoming, Name: transfer.DefaultReceivedName, Size: 200})
	tr.Apply(transfer.Progressed{Direction: transfer.DirectionIncoming, Bytes: 100, Size: 200})

	snap := tr.Apply(transfer.Renamed{Direction: transfer.DirectionIncoming, Name: "late.txt"})
	assert.Equal(t, "late.txt", snap.FileName)
	assert.Equal(t, "Receiving late.txt...", snap.Status)
	assert.Equal(t, int64(100), snap.BytesTransferred)
	assert.Equal(t, float64(50), snap.Percent)
}

func TestTracker_PercentNeverDecreases(t *testing.T) {
	tr := NewTracker()
	tr.Apply(transfer.Started{Name: "x", Size: 100})
	tr.Apply(transfer.Progressed{Bytes: 60, Size: 100})

	// A re-announced, larger size must not pull the bar backwards.
	snap := tr.Apply(transfer.Progressed{Bytes: 60, Size: 200})
	assert.Equal(t, float64(60), snap.Percent)
}

func TestTracker_ClearsOnDiscardAndClose(t *testing.T) {
	tr := NewTracker()
	tr.Apply(transfer.Started{Name: "x", Size: 100})
	tr.Apply(transfer.Progressed{Bytes: 40, Size: 100})

	snap := tr.Apply(transfer.Discarded{Reason: errors.New("boom")})
	assert.False(t, snap.InProgress)
	assert.Zero(t, snap.BytesTransferred)
	assert.Zero(t, snap.Percent)
	assert.Equal(t, "Transfer failed: boom", snap.Status)

	tr.Apply(transfer.Started{Name: "y", Size: 100})
	tr.Apply(transfer.Progressed{Bytes: 10, Size: 100})
	snap = tr.Apply(negotiation.ChannelClosed{WasConnected: true})
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.FileName)
	assert.Equal(t, StatusClosed, snap.Status)
}

func TestTracker_IgnoresUnknownEvents(t *testing.T) {
	tr := NewTracker()
	before := tr.Snapshot()
	assert.Equal(t, before, tr.Apply("not an event"))
}
