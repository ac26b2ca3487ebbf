package webrtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/pkg/transfer"
)

// Channel adapts a pion data channel to transfer.BufferedChannel.
type Channel struct {
	dc *webrtc.DataChannel
}

var _ transfer.BufferedChannel = (*Channel)(nil)

func newChannel(dc *webrtc.DataChannel) *Channel {
	return &Channel{dc: dc}
}

func (c *Channel) SendText(s string) error {
	return c.dc.SendText(s)
}

func (c *Channel) Send(data []byte) error {
	return c.dc.Send(data)
}

// BufferedAmount is the number of bytes queued in the SCTP stream.
func (c *Channel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *Channel) Label() string {
	return c.dc.Label()
}
