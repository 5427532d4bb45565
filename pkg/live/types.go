package live

import "github.com/sdelrio0/xyflow-flow/pkg/flow"

// FrameType identifies a live protocol message
type FrameType string

const (
	// FrameHello is the first frame the server sends a client
	FrameHello FrameType = "hello"
	// FrameChanges carries a node and edge change batch
	FrameChanges FrameType = "changes"
	// FrameSnapshot carries the whole document
	FrameSnapshot FrameType = "snapshot"
	// FrameError reports a rejected frame
	FrameError FrameType = "error"
	// FramePing and FramePong are application level keepalives
	FramePing FrameType = "ping"
	FramePong FrameType = "pong"
)

// Frame is one JSON message on a live connection.
//
// Clients send changes frames; Seq is ignored on the way in. The server
// stamps every applied batch with the session sequence number before
// broadcasting it.
type Frame struct {
	Type     FrameType         `json:"type" validate:"required,oneof=hello changes snapshot error ping pong"`
	Seq      uint64            `json:"seq,omitempty"`
	Session  string            `json:"session,omitempty"`
	Client   string            `json:"client,omitempty"`
	Nodes    []flow.WireChange `json:"nodes,omitempty"`
	Edges    []flow.WireChange `json:"edges,omitempty"`
	Document *flow.Document    `json:"document,omitempty" validate:"required_if=Type snapshot"`
	Error    string            `json:"error,omitempty" validate:"required_if=Type error"`
}
