package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Chatter/internal/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.n
}

func (g *seqIDs) MessageID() string { return fmt.Sprintf("m-%d", g.next()) }

func (g *seqIDs) NotificationID(kind NotificationKind, user domain.UserID, _ time.Time) string {
	return fmt.Sprintf("%s-%s-%d", kind, user, g.next())
}

var errFull = errors.New("full")

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type mockConn struct {
	id       domain.ConnectionID
	mu       sync.Mutex
	received []frame
	sendErr  error
	closed   bool
}

func newMockConn(id string) *mockConn { return &mockConn{id: domain.ConnectionID(id)} }

func (m *mockConn) ID() domain.ConnectionID { return m.id }

func (m *mockConn) TrySend(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	var fr frame
	if err := json.Unmarshal(f, &fr); err != nil {
		return err
	}
	m.received = append(m.received, fr)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockConn) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.received))
	for _, f := range m.received {
		out = append(out, f.Event)
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	m.received = nil
	m.mu.Unlock()
}
