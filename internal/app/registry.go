package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

// Binding ties a connection to a user seated in a room through it.
type Binding struct {
	Room domain.RoomID
	User domain.UserID
}

type connEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
	Rooms  map[domain.RoomID]map[domain.UserID]struct{}
}

// Registry tracks live connections and, per connection, which room entries
// were created through it. It is the reverse index disconnect cleanup walks.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnectionID]*connEntry)}
}

func (r *Registry) Register(conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = &connEntry{
		Conn:   conn,
		Cancel: cancel,
		Rooms:  make(map[domain.RoomID]map[domain.UserID]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn_id", string(conn.ID())).Msg("registered connection")
}

// Unregister forgets the connection and hands back what it was bound to.
func (r *Registry) Unregister(id domain.ConnectionID) ([]Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn_id", string(id)).Msg("unregistered connection")
	return flatten(e), true
}

// Bind records that user sits in room through connection id. Unknown
// connections are ignored and reported false.
func (r *Registry) Bind(id domain.ConnectionID, room domain.RoomID, user domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	users, ok := e.Rooms[room]
	if !ok {
		users = make(map[domain.UserID]struct{})
		e.Rooms[room] = users
	}
	users[user] = struct{}{}
	return true
}

func (r *Registry) Release(id domain.ConnectionID, room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	users := e.Rooms[room]
	delete(users, user)
	if len(users) == 0 {
		delete(e.Rooms, room)
	}
}

// ReleaseRoom drops every binding that points at room.
func (r *Registry) ReleaseRoom(room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.conns {
		delete(e.Rooms, room)
	}
}

func (r *Registry) BindingsOf(id domain.ConnectionID) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	return flatten(e)
}

func (r *Registry) Get(id domain.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Connections returns every live connection.
func (r *Registry) Connections() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.Conn)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the pumps of a connection. Cleanup happens on their way out.
func (r *Registry) Cancel(id domain.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn_id", string(id)).Msg("canceled connection")
	return true
}

func flatten(e *connEntry) []Binding {
	var out []Binding
	for room, users := range e.Rooms {
		for u := range users {
			out = append(out, Binding{Room: room, User: u})
		}
	}
	return out
}
