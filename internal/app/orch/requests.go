package orch

import "github.com/dkeye/Chatter/internal/domain"

// Ack error strings seen by clients.
const (
	AckRoomExists      = "Room already exists"
	AckRoomNotFound    = "Room does not exist"
	AckInvalidPassword = "Invalid password"
	AckInvalidRoomID   = "Invalid room id"
	AckTooManyMessages = "Too many messages"
	AckEmptyMessage    = "Message is empty"
	AckBadPayload      = "bad_payload"
)

// Out-of-band notice texts.
const (
	NoticeRoomNotFound = "Room does not exist"
	NoticeRoomFull     = "This room already has a user with your role."
)

type CreateRoomRequest struct {
	RoomID      domain.RoomID `json:"roomId"`
	DisplayName string        `json:"displayName"`
	Password    string        `json:"password"`
}

type JoinRoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
	Role   domain.Role   `json:"role"`
	UserID domain.UserID `json:"userId"`
}

type SendMessageRequest struct {
	RoomID    domain.RoomID `json:"roomId"`
	Role      domain.Role   `json:"role"`
	Message   string        `json:"message"`
	CreatedAt int64         `json:"createdAt"`
}

type LeaveRoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
	Role   domain.Role   `json:"role"`
	UserID domain.UserID `json:"userId"`
}

// RoomRequest addresses a room only (getMessages, updateRoomActivity).
type RoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
}

type DeleteRoomRequest struct {
	RoomID   domain.RoomID `json:"roomId"`
	Password string        `json:"password"`
}

// Ack is the response to an acknowledged event.
type Ack struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

func success() Ack { return Ack{Success: true} }

func failure(msg string) Ack { return Ack{Error: msg} }

// Notice is the payload of roomNotFound, roomFull and error events.
type Notice struct {
	Message string `json:"message"`
}
