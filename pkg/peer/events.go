package peer

import (
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/api"
	"github.com/rescp17/peerdrop/pkg/transfer"
)

// Loop events. Transport events carry the generation of the session whose
// transport raised them so late callbacks from a replaced transport are dropped.

type relayMessage struct {
	env api.Envelope
}

type relayClosed struct{}

type localCandidate struct {
	gen       int
	candidate webrtc.ICECandidateInit
}

type channelOpened struct {
	gen int
	ch  transfer.Channel
}

type channelMessage struct {
	gen int
	msg transfer.Message
}

type channelClosed struct {
	gen int
}

type sendTick struct {
	gen int
}
