package domain

type EntryType string

const (
	EntryMessage      EntryType = "message"
	EntryNotification EntryType = "notification"
)

// Entry is one line of a room log: either a user-authored message or a
// system notification. The JSON shape follows the wire protocol, so unused
// fields for a given type are omitted.
type Entry struct {
	Type EntryType `json:"type"`

	// notification fields
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// message fields
	MessageID string `json:"messageId,omitempty"`
	RoomID    RoomID `json:"roomId,omitempty"`
	Role      Role   `json:"role,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`

	Message         string `json:"message"`
	ServerTimestamp int64  `json:"serverTimestamp,omitempty"`
}

// Key identifies the entry for deduplication.
func (e Entry) Key() string {
	if e.Type == EntryMessage {
		return e.MessageID
	}
	return e.ID
}

// OrderKey is serverTimestamp, falling back to the client supplied time.
func (e Entry) OrderKey() int64 {
	if e.ServerTimestamp != 0 {
		return e.ServerTimestamp
	}
	if e.Type == EntryMessage {
		return e.CreatedAt
	}
	return e.Timestamp
}
