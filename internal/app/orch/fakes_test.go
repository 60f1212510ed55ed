package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

var errBufferFull = errors.New("buffer full")

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type mockConn struct {
	id domain.ConnectionID

	mu       sync.Mutex
	received []event
	full     bool
	closed   bool
}

func (m *mockConn) ID() domain.ConnectionID { return m.id }

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full || m.closed {
		return errBufferFull
	}
	var ev event
	if err := json.Unmarshal(f, &ev); err != nil {
		return err
	}
	m.received = append(m.received, ev)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) setFull(v bool) {
	m.mu.Lock()
	m.full = v
	m.mu.Unlock()
}

func (m *mockConn) events(name string) []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event
	for _, ev := range m.received {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

type recordingFeed struct {
	mu        sync.Mutex
	published map[domain.RoomID][]domain.Entry
	removed   []domain.RoomID
}

func newRecordingFeed() *recordingFeed {
	return &recordingFeed{published: make(map[domain.RoomID][]domain.Entry)}
}

func (f *recordingFeed) Publish(_ context.Context, room domain.RoomID, e domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[room] = append(f.published[room], e)
	return nil
}

func (f *recordingFeed) Remove(_ context.Context, room domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, room)
	return nil
}

func (f *recordingFeed) entries(room domain.RoomID) []domain.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Entry(nil), f.published[room]...)
}

func (f *recordingFeed) wasRemoved(room domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.removed {
		if r == room {
			return true
		}
	}
	return false
}

type harness struct {
	*Orchestrator
	feed    *recordingFeed
	cancels map[domain.ConnectionID]*atomic.Bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	feed := newRecordingFeed()
	return &harness{
		Orchestrator: &Orchestrator{
			Rooms:         core.NewRoomRegistry(core.DefaultRoomTTL, core.SystemClock{}, core.NewDefaultIDs()),
			Registry:      app.NewRegistry(),
			Policy:        app.SimplePolicy{},
			Feed:          feed,
			AdminPassword: "admin123",
		},
		feed:    feed,
		cancels: make(map[domain.ConnectionID]*atomic.Bool),
	}
}

// connect registers a fresh mock connection.
func (h *harness) connect(id string) *mockConn {
	c := &mockConn{id: domain.ConnectionID(id)}
	canceled := &atomic.Bool{}
	h.cancels[c.id] = canceled
	h.Connect(c, func() { canceled.Store(true) })
	return c
}

func (h *harness) mustCreate(t *testing.T, id domain.RoomID) {
	t.Helper()
	ack := h.CreateRoom(CreateRoomRequest{RoomID: id, DisplayName: "Test", Password: "p"})
	if !ack.Success {
		t.Fatalf("create %s: %s", id, ack.Error)
	}
}
