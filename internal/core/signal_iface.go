package core

import (
	"encoding/json"

	"github.com/dkeye/Chatter/internal/domain"
)

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() domain.ConnectionID
	// TrySend must never block; a full buffer is reported as an error.
	TrySend(Frame) error
	Close()
}

// Unsolicited events pushed to connections.
const (
	EventRoomNotFound   = "roomNotFound"
	EventRoomFull       = "roomFull"
	EventRoomUpdated    = "roomUpdated"
	EventReceiveMessage = "receiveMessage"
	EventRoomCreated    = "roomCreated"
	EventRoomDeleted    = "roomDeleted"
	EventPong           = "pong"
	EventError          = "error"
)

type eventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func EncodeEvent(name string, data any) (Frame, error) {
	return json.Marshal(eventFrame{Event: name, Data: data})
}

// PublishResult reports delivery stats/backpressure to orchestrator.
// Both fields count connections, not frames.
type PublishResult struct {
	SendTo  int
	Dropped []SignalConnection
}
