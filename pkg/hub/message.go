// Package hub fans dashboard updates out to websocket clients.
package hub

import "github.com/gofiber/websocket/v2"

// Kind says what a message carries and how it is framed.
type Kind int

const (
	// Snapshot is a JSON status. The latest one is replayed to clients
	// that connect later, so a new dashboard is never blank.
	Snapshot Kind = iota
	// Frame is a JPEG camera frame, sent as a binary message and never
	// replayed.
	Frame
)

// Message is one broadcast payload.
type Message struct {
	Kind Kind
	Data []byte
}

// wireType is the websocket opcode for the message.
func (m Message) wireType() int {
	if m.Kind == Frame {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// replayable reports whether new clients should receive m on connect.
func (m Message) replayable() bool {
	return m.Kind == Snapshot
}
