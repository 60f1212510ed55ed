package domain

type RoomID string

// Participant is one occupied slot of a room. ConnectionID is a non-owning
// back-reference to the transport connection and only routes disconnects.
type Participant struct {
	Role         Role         `json:"role"`
	ConnectionID ConnectionID `json:"connectionId"`
	JoinedAt     int64        `json:"joinedAt"`
}

// RoomSnapshot is the read-only view handed to collaborators.
// All timestamps are Unix milliseconds.
type RoomSnapshot struct {
	ID           RoomID                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Password     string                 `json:"password"`
	CreatedAt    int64                  `json:"createdAt"`
	ExpiresAt    int64                  `json:"expiresAt"`
	Participants map[UserID]Participant `json:"participants"`
	Messages     []Entry                `json:"messages"`
	LastActivity int64                  `json:"lastActivity"`
}
