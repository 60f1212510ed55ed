package core

import (
	"slices"
	"sort"

	"github.com/dkeye/Chatter/internal/domain"
)

// MessageLog is the append-only log of one room, kept sorted by
// Entry.OrderKey with ties broken by arrival. It is not safe for concurrent
// use; the owning Room serializes access.
type MessageLog struct {
	clock   Clock
	ids     IDGenerator
	entries []domain.Entry
	seen    map[string]struct{}
}

func NewMessageLog(clock Clock, ids IDGenerator) *MessageLog {
	return &MessageLog{
		clock: clock,
		ids:   ids,
		seen:  make(map[string]struct{}),
	}
}

// Append inserts e at its ordered position. Messages are authored here, so
// they always get a server timestamp and, when missing, a fresh id.
// Notifications keep a timestamp they already carry. Appending an entry whose
// id is already present does nothing and reports false.
func (l *MessageLog) Append(e domain.Entry) (domain.Entry, bool) {
	now := l.clock.Now().UnixMilli()
	switch e.Type {
	case domain.EntryMessage:
		if e.MessageID == "" {
			e.MessageID = l.ids.MessageID()
		}
		e.ServerTimestamp = now
	default:
		e.Type = domain.EntryNotification
		if e.ServerTimestamp == 0 {
			e.ServerTimestamp = now
		}
		if e.Timestamp == 0 {
			e.Timestamp = e.ServerTimestamp
		}
	}

	key := e.Key()
	if key != "" {
		if _, dup := l.seen[key]; dup {
			return e, false
		}
		l.seen[key] = struct{}{}
	}

	// Upper bound keeps equal keys in arrival order.
	k := e.OrderKey()
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].OrderKey() > k
	})
	l.entries = slices.Insert(l.entries, i, e)
	return e, true
}

// AppendMessage always records a new message with a fresh id; reconciling a
// client's optimistic copy is left to the client.
func (l *MessageLog) AppendMessage(room domain.RoomID, role domain.Role, text string, createdAt int64) domain.Entry {
	e, _ := l.Append(domain.Entry{
		Type:      domain.EntryMessage,
		MessageID: l.ids.MessageID(),
		RoomID:    room,
		Role:      role,
		Message:   text,
		CreatedAt: createdAt,
	})
	return e
}

func (l *MessageLog) AppendNotification(kind NotificationKind, user domain.UserID, text string) domain.Entry {
	now := l.clock.Now()
	e, _ := l.Append(domain.Entry{
		Type:            domain.EntryNotification,
		ID:              l.ids.NotificationID(kind, user, now),
		Message:         text,
		Timestamp:       now.UnixMilli(),
		ServerTimestamp: now.UnixMilli(),
	})
	return e
}

func (l *MessageLog) Has(id string) bool {
	_, ok := l.seen[id]
	return ok
}

func (l *MessageLog) Len() int { return len(l.entries) }

// Snapshot returns an ordered copy of the log.
func (l *MessageLog) Snapshot() []domain.Entry {
	sorted := slices.IsSortedFunc(l.entries, compareEntries)
	invariant(sorted, "core.messagelog", "log out of order")
	if !sorted {
		slices.SortStableFunc(l.entries, compareEntries)
	}
	out := make([]domain.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func compareEntries(a, b domain.Entry) int {
	ka, kb := a.OrderKey(), b.OrderKey()
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}
