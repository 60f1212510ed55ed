package core

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/dkeye/Chatter/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type NotificationKind string

const (
	NotifyJoin  NotificationKind = "join"
	NotifyLeave NotificationKind = "leave"
)

// IDGenerator supplies identifiers for log entries.
type IDGenerator interface {
	MessageID() string
	NotificationID(kind NotificationKind, user domain.UserID, at time.Time) string
}

// DefaultIDs issues uuid message ids and notification ids of the form
// "<kind>-<user>-<unix ms>-<ulid>". The ulid part is monotonic so ids minted
// within the same millisecond still sort in issue order.
type DefaultIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewDefaultIDs() *DefaultIDs {
	return &DefaultIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *DefaultIDs) MessageID() string { return uuid.NewString() }

func (g *DefaultIDs) NotificationID(kind NotificationKind, user domain.UserID, at time.Time) string {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	g.mu.Unlock()
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		id = ulid.Make()
	}
	return fmt.Sprintf("%s-%s-%d-%s", kind, user, at.UnixMilli(), id)
}
