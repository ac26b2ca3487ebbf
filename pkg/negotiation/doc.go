// Package negotiation drives the two-party offer/answer handshake that turns a
// signaling relay and a channel transport into an open data channel.
//
// The relay delivers messages best-effort and unordered, so a Session rejects
// handshake messages that are impossible in its current state and buffers
// ICE candidates that outrace the description they depend on.
package negotiation
