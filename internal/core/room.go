package core

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/domain"
)

// Room is a threadsafe in-memory room. Every mutation and the broadcast
// that follows it happen under mu; delivery is a non-blocking TrySend.
// It never closes adapter-owned resources.
type Room struct {
	mu sync.Mutex

	id           domain.RoomID
	displayName  string
	password     string
	createdAt    time.Time
	expiresAt    time.Time
	lastActivity time.Time

	participants *ParticipantTable
	log          *MessageLog
	// links is the room channel: connections of current participants.
	links  map[domain.ConnectionID]SignalConnection
	closed bool

	clock Clock
}

func newRoom(id domain.RoomID, displayName, password string, ttl time.Duration, clock Clock, ids IDGenerator) *Room {
	now := clock.Now()
	return &Room{
		id:           id,
		displayName:  displayName,
		password:     password,
		createdAt:    now,
		expiresAt:    now.Add(ttl),
		lastActivity: now,
		participants: NewParticipantTable(),
		log:          NewMessageLog(clock, ids),
		links:        make(map[domain.ConnectionID]SignalConnection),
		clock:        clock,
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

type JoinResult struct {
	Notification domain.Entry
	Snapshot     domain.RoomSnapshot
	// Rejoined is set when the user already had an entry.
	Rejoined bool
	// Replaced is the connection the user was bound to before, when it differs.
	Replaced domain.ConnectionID
	Delivery PublishResult
}

// Join seats user in role, subscribes conn to the room channel, records a
// join notification and broadcasts the new state.
func (r *Room) Join(user domain.UserID, role domain.Role, conn SignalConnection) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}

	now := r.clock.Now()
	prev, existed, err := r.participants.Join(user, role, conn.ID(), now.UnixMilli())
	if err != nil {
		return JoinResult{}, fmt.Errorf("join %s as %s: %w", r.id, role, err)
	}

	res := JoinResult{Rejoined: existed}
	if existed && prev.ConnectionID != conn.ID() {
		res.Replaced = prev.ConnectionID
		r.unlinkLocked(prev.ConnectionID)
	}
	r.links[conn.ID()] = conn
	r.lastActivity = now

	res.Notification = r.log.AppendNotification(NotifyJoin, user, role.Label()+" joined the room")
	res.Snapshot = r.snapshotLocked()
	res.Delivery = r.broadcastStateLocked(res.Snapshot, res.Notification)

	log.Info().Str("module", "core.room").Str("room_id", string(r.id)).Str("user_id", string(user)).
		Str("role", string(role)).Str("conn_id", string(conn.ID())).Int("participants", r.participants.Len()).Msg("joined")
	return res, nil
}

type LeaveResult struct {
	User         domain.UserID
	Participant  domain.Participant
	Notification domain.Entry
	Snapshot     domain.RoomSnapshot
	Delivery     PublishResult
}

// Leave removes user. It reports false, and does nothing else, when the user
// is not seated or the room is closed.
func (r *Room) Leave(user domain.UserID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(user, "")
}

// LeaveIfBound removes user only while their entry is still bound to conn,
// so a stale disconnect cannot evict a user who re-joined elsewhere.
func (r *Room) LeaveIfBound(user domain.UserID, conn domain.ConnectionID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(user, conn)
}

func (r *Room) leaveLocked(user domain.UserID, conn domain.ConnectionID) (LeaveResult, bool) {
	if r.closed {
		return LeaveResult{}, false
	}
	if p, ok := r.participants.Get(user); !ok || (conn != "" && p.ConnectionID != conn) {
		return LeaveResult{}, false
	}
	p, _ := r.participants.Leave(user)
	r.unlinkLocked(p.ConnectionID)
	r.lastActivity = r.clock.Now()

	res := LeaveResult{User: user, Participant: p}
	res.Notification = r.log.AppendNotification(NotifyLeave, user, p.Role.Label()+" left the room")
	res.Snapshot = r.snapshotLocked()
	res.Delivery = r.broadcastStateLocked(res.Snapshot, res.Notification)

	log.Info().Str("module", "core.room").Str("room_id", string(r.id)).Str("user_id", string(user)).
		Str("role", string(p.Role)).Int("participants", r.participants.Len()).Msg("left")
	return res, true
}

// Send appends a message and pushes it to the room channel.
func (r *Room) Send(role domain.Role, text string, createdAt int64) (domain.Entry, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.Entry{}, PublishResult{}, ErrRoomClosed
	}
	msg := r.log.AppendMessage(r.id, role, text, createdAt)
	r.lastActivity = r.clock.Now()

	var res PublishResult
	if f, err := EncodeEvent(EventReceiveMessage, msg); err == nil {
		res = r.broadcastLocked(f)
	} else {
		log.Error().Err(err).Str("module", "core.room").Msg("encode message")
	}
	return msg, res, nil
}

// Messages returns the ordered log.
func (r *Room) Messages() []domain.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Snapshot()
}

func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Participant looks up the entry of user.
func (r *Room) Participant(user domain.UserID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants.Get(user)
}

// Seated reports whether user is in the open room through conn.
func (r *Room) Seated(user domain.UserID, conn domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	p, ok := r.participants.Get(user)
	return ok && p.ConnectionID == conn
}

// Touch marks activity without any broadcast.
func (r *Room) Touch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.lastActivity = r.clock.Now()
	return true
}

func (r *Room) CheckPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(r.password), []byte(password)) == 1
}

// Stale reports why the room should be swept, if it should.
func (r *Room) Stale(now time.Time, idle time.Duration) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleLocked(now, idle)
}

func (r *Room) staleLocked(now time.Time, idle time.Duration) (string, bool) {
	switch {
	case r.closed:
		return "", false
	case now.After(r.expiresAt):
		return "expired", true
	case idle > 0 && now.Sub(r.lastActivity) >= idle:
		return "idle", true
	}
	return "", false
}

type CloseResult struct {
	Participants map[domain.UserID]domain.Participant
	Links        []SignalConnection
}

// close marks the room dead. Handles kept by callers fail with ErrRoomClosed
// from then on.
func (r *Room) close() CloseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Room) closeLocked() CloseResult {
	if r.closed {
		return CloseResult{}
	}
	r.closed = true
	res := CloseResult{Participants: r.participants.Snapshot()}
	for _, c := range r.links {
		res.Links = append(res.Links, c)
	}
	clear(r.links)
	return res
}

func (r *Room) unlinkLocked(conn domain.ConnectionID) {
	if !r.participants.References(conn) {
		delete(r.links, conn)
	}
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		ID:           r.id,
		DisplayName:  r.displayName,
		Password:     r.password,
		CreatedAt:    r.createdAt.UnixMilli(),
		ExpiresAt:    r.expiresAt.UnixMilli(),
		Participants: r.participants.Snapshot(),
		Messages:     r.log.Snapshot(),
		LastActivity: r.lastActivity.UnixMilli(),
	}
}

func (r *Room) broadcastStateLocked(snap domain.RoomSnapshot, note domain.Entry) PublishResult {
	frames := make([]Frame, 0, 2)
	for _, ev := range []struct {
		name string
		data any
	}{
		{EventRoomUpdated, snap},
		{EventReceiveMessage, note},
	} {
		f, err := EncodeEvent(ev.name, ev.data)
		if err != nil {
			log.Error().Err(err).Str("module", "core.room").Str("event", ev.name).Msg("encode event")
			continue
		}
		frames = append(frames, f)
	}
	return r.broadcastLocked(frames...)
}

// broadcastLocked sends frames to every subscriber in order. A connection
// that refuses a frame gets none of the rest and is reported once.
func (r *Room) broadcastLocked(frames ...Frame) PublishResult {
	res := PublishResult{}
	for id, c := range r.links {
		invariant(r.participants.References(id), "core.room", "broadcast to unsubscribed connection")
		delivered := true
		for _, f := range frames {
			if err := c.TrySend(f); err != nil {
				res.Dropped = append(res.Dropped, c)
				delivered = false
				break
			}
		}
		if delivered {
			res.SendTo++
		}
	}
	log.Debug().Str("module", "core.room").Str("room_id", string(r.id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
