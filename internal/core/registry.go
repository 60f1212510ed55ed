package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/domain"
)

const (
	DefaultRoomTTL    = time.Hour
	MaxRoomIDLen      = 64
	MaxDisplayNameLen = 100
)

// RoomRegistry owns every Room. Creation, lookup and deletion are atomic
// against each other; rooms keep their own lock for everything else.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	order []domain.RoomID

	ttl   time.Duration
	clock Clock
	ids   IDGenerator
}

func NewRoomRegistry(ttl time.Duration, clock Clock, ids IDGenerator) *RoomRegistry {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*Room),
		ttl:   ttl,
		clock: clock,
		ids:   ids,
	}
}

func (g *RoomRegistry) Create(id domain.RoomID, displayName, password string) (*Room, error) {
	if strings.TrimSpace(string(id)) == "" || len(id) > MaxRoomIDLen {
		return nil, ErrInvalidRoomID
	}
	displayName = truncate(displayName, MaxDisplayNameLen)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; ok {
		return nil, fmt.Errorf("create %s: %w", id, ErrRoomExists)
	}
	room := newRoom(id, displayName, password, g.ttl, g.clock, g.ids)
	g.rooms[id] = room
	g.order = append(g.order, id)
	log.Info().Str("module", "core.registry").Str("room_id", string(id)).Str("name", displayName).Msg("room created")
	return room, nil
}

func (g *RoomRegistry) Get(id domain.RoomID) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrRoomNotFound)
	}
	return room, nil
}

// List returns rooms in creation order.
func (g *RoomRegistry) List() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.rooms[id])
	}
	return out
}

func (g *RoomRegistry) Snapshots() []domain.RoomSnapshot {
	rooms := g.List()
	out := make([]domain.RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot())
	}
	return out
}

// Delete removes the room and closes it. The returned CloseResult lists who
// was still seated so callers can release their bindings.
func (g *RoomRegistry) Delete(id domain.RoomID) (CloseResult, error) {
	g.mu.Lock()
	room, ok := g.rooms[id]
	if ok {
		g.removeLocked(id)
	}
	g.mu.Unlock()
	if !ok {
		return CloseResult{}, fmt.Errorf("delete %s: %w", id, ErrRoomNotFound)
	}
	res := room.close()
	log.Info().Str("module", "core.registry").Str("room_id", string(id)).Int("participants", len(res.Participants)).Msg("room deleted")
	return res, nil
}

// DeleteStale deletes the room only if it is still stale at now. The check
// and the close share one hold of the room lock.
func (g *RoomRegistry) DeleteStale(id domain.RoomID, now time.Time, idle time.Duration) (string, CloseResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	if !ok {
		return "", CloseResult{}, fmt.Errorf("delete %s: %w", id, ErrRoomNotFound)
	}

	room.mu.Lock()
	reason, stale := room.staleLocked(now, idle)
	if !stale {
		room.mu.Unlock()
		return "", CloseResult{}, ErrRoomNotStale
	}
	res := room.closeLocked()
	room.mu.Unlock()

	g.removeLocked(id)
	log.Info().Str("module", "core.registry").Str("room_id", string(id)).Str("reason", reason).Int("participants", len(res.Participants)).Msg("room swept")
	return reason, res, nil
}

func (g *RoomRegistry) removeLocked(id domain.RoomID) {
	delete(g.rooms, id)
	g.order = slices.DeleteFunc(g.order, func(x domain.RoomID) bool { return x == id })
}

func (g *RoomRegistry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
