package orch

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

func TestCreateRoom_Duplicate(t *testing.T) {
	h := newHarness(t)
	lobby := h.connect("L")

	first := h.CreateRoom(CreateRoomRequest{RoomID: "r1", DisplayName: "Test", Password: "p"})
	second := h.CreateRoom(CreateRoomRequest{RoomID: "r1", DisplayName: "Other", Password: "q"})

	assert.Equal(t, Ack{Success: true}, first)
	assert.Equal(t, Ack{Success: false, Error: "Room already exists"}, second)
	raw, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Room already exists"}`, string(raw))

	created := lobby.events("roomCreated")
	require.Len(t, created, 1)
	var snap domain.RoomSnapshot
	require.NoError(t, json.Unmarshal(created[0].Data, &snap))
	assert.Equal(t, "Test", snap.DisplayName)
}

func TestCreateRoom_InvalidID(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, AckInvalidRoomID, h.CreateRoom(CreateRoomRequest{RoomID: " "}).Error)
	assert.Empty(t, h.GetRooms())
}

func TestJoinRoom_RoleFull(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a, b := h.connect("A"), h.connect("B")

	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(b, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u2"})

	full := b.events("roomFull")
	require.Len(t, full, 1)
	var n Notice
	require.NoError(t, json.Unmarshal(full[0].Data, &n))
	assert.Equal(t, NoticeRoomFull, n.Message)
	assert.Empty(t, b.events("roomUpdated"))

	snap, err := h.GetRoom("r1")
	require.NoError(t, err)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, domain.RoleOwner, snap.Participants["u1"].Role)
	assert.Empty(t, h.Registry.BindingsOf("B"))
}

func TestJoinRoom_NotFound(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.JoinRoom(a, JoinRoomRequest{RoomID: "nope", Role: domain.RoleOwner, UserID: "u1"})

	nf := a.events("roomNotFound")
	require.Len(t, nf, 1)
	assert.JSONEq(t, `{"message":"Room does not exist"}`, string(nf[0].Data))
}

func TestJoinRoom_BadPayload(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a := h.connect("A")

	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner})
	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", UserID: "u1"})

	assert.Len(t, a.events("error"), 2)
	snap, _ := h.GetRoom("r1")
	assert.Empty(t, snap.Participants)
}

func TestJoinRoom_BroadcastsToChannel(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a, b, outsider := h.connect("A"), h.connect("B"), h.connect("C")

	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(b, JoinRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})

	assert.Len(t, a.events("roomUpdated"), 2)
	assert.Len(t, b.events("roomUpdated"), 1)
	assert.Empty(t, outsider.events("roomUpdated"))

	notes := a.events("receiveMessage")
	require.Len(t, notes, 2)
	var e domain.Entry
	require.NoError(t, json.Unmarshal(notes[1].Data, &e))
	assert.Equal(t, "Anonymous User joined the room", e.Message)
	assert.True(t, strings.HasPrefix(e.ID, "join-u2-"))
}

func TestJoinRoom_UnregisteredConnectionLeavesNoEntry(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	gone := &mockConn{id: "gone"}

	h.JoinRoom(gone, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})

	snap, _ := h.GetRoom("r1")
	assert.Empty(t, snap.Participants)
}

func TestJoinRoom_EvictedConcurrentlyLeavesNoBinding(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 50; i++ {
		id := domain.RoomID(fmt.Sprintf("race-%d", i))
		h.mustCreate(t, id)
		c := h.connect(fmt.Sprintf("c%d", i))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.JoinRoom(c, JoinRoomRequest{RoomID: id, Role: domain.RoleOwner, UserID: "u1"})
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, h.EvictRoom(id, "request"))
		}()
		wg.Wait()

		assert.Empty(t, h.Registry.BindingsOf(c.id), "room %s", id)
	}
}

func TestEvictStale(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	c := h.connect("c1")
	h.JoinRoom(c, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})

	_, err := h.EvictStale("r1", time.Now(), 30*time.Minute)
	assert.ErrorIs(t, err, core.ErrRoomNotStale)
	assert.NotEmpty(t, h.Registry.BindingsOf(c.id))

	reason, err := h.EvictStale("r1", time.Now().Add(2*time.Hour), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "expired", reason)
	assert.Empty(t, h.Registry.BindingsOf(c.id))
	assert.Len(t, c.events(core.EventRoomDeleted), 1)
	assert.Eventually(t, func() bool { return h.feed.wasRemoved("r1") }, time.Second, 5*time.Millisecond)
}

func TestSendMessage_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")

	ack := h.SendMessage(SendMessageRequest{RoomID: "r1", Role: domain.RoleOwner, Message: "hi", CreatedAt: 1000})
	require.True(t, ack.Success)
	require.NotEmpty(t, ack.MessageID)

	msgs := h.GetMessages(RoomRequest{RoomID: "r1"})
	require.Len(t, msgs, 1)
	assert.Equal(t, ack.MessageID, msgs[0].MessageID)
	assert.Equal(t, "hi", msgs[0].Message)
	assert.Equal(t, int64(1000), msgs[0].CreatedAt)
	assert.Equal(t, domain.EntryMessage, msgs[0].Type)

	assert.Eventually(t, func() bool {
		for _, e := range h.feed.entries("r1") {
			if e.MessageID == ack.MessageID {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessage_Failures(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")

	tests := []struct {
		name string
		req  SendMessageRequest
		want string
	}{
		{"unknown room", SendMessageRequest{RoomID: "nope", Role: domain.RoleOwner, Message: "hi"}, AckRoomNotFound},
		{"empty text", SendMessageRequest{RoomID: "r1", Role: domain.RoleOwner, Message: "  \x00 "}, AckEmptyMessage},
		{"role too long", SendMessageRequest{RoomID: "r1", Role: domain.Role(strings.Repeat("x", 40)), Message: "hi"}, AckBadPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := h.SendMessage(tt.req)
			assert.False(t, ack.Success)
			assert.Equal(t, tt.want, ack.Error)
		})
	}
	assert.Empty(t, h.GetMessages(RoomRequest{RoomID: "r1"}))
}

func TestGetMessages_UnknownRoomIsEmpty(t *testing.T) {
	h := newHarness(t)
	msgs := h.GetMessages(RoomRequest{RoomID: "missing"})
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestLeaveRoom_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a, b := h.connect("A"), h.connect("B")
	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(b, JoinRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})

	h.LeaveRoom(LeaveRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})
	after := h.GetMessages(RoomRequest{RoomID: "r1"})
	h.LeaveRoom(LeaveRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})
	h.LeaveRoom(LeaveRoomRequest{RoomID: "nope", UserID: "u2"})

	assert.Equal(t, after, h.GetMessages(RoomRequest{RoomID: "r1"}))
	assert.Empty(t, h.Registry.BindingsOf("B"))
	assert.Len(t, h.Registry.BindingsOf("A"), 1)
}

func TestDisconnect_ImplicitLeave(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a, b := h.connect("A"), h.connect("B")
	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(b, JoinRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})
	before := h.GetMessages(RoomRequest{RoomID: "r1"})

	h.Disconnect("A")
	h.Disconnect("A")

	snap, err := h.GetRoom("r1")
	require.NoError(t, err)
	assert.NotContains(t, snap.Participants, domain.UserID("u1"))

	after := h.GetMessages(RoomRequest{RoomID: "r1"})
	require.Len(t, after, len(before)+1)
	last := after[len(after)-1]
	assert.Equal(t, domain.EntryNotification, last.Type)
	assert.Contains(t, last.Message, "left the room")
	assert.Len(t, b.events("roomUpdated"), 2)
	assert.Equal(t, 1, h.Registry.Count())
}

func TestDisconnect_StaleConnectionAfterRejoin(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	old, fresh := h.connect("old"), h.connect("fresh")
	h.JoinRoom(old, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(fresh, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})

	assert.Empty(t, h.Registry.BindingsOf("old"))
	h.Disconnect("old")

	snap, _ := h.GetRoom("r1")
	require.Contains(t, snap.Participants, domain.UserID("u1"))
	assert.Equal(t, domain.ConnectionID("fresh"), snap.Participants["u1"].ConnectionID)
}

func TestDeleteRoom(t *testing.T) {
	tests := []struct {
		name     string
		room     domain.RoomID
		password string
		want     Ack
	}{
		{"room password", "r1", "p", Ack{Success: true}},
		{"admin password", "r1", "admin123", Ack{Success: true}},
		{"wrong password", "r1", "x", Ack{Error: AckInvalidPassword}},
		{"unknown room", "zz", "p", Ack{Error: AckRoomNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mustCreate(t, "r1")
			a, watcher := h.connect("A"), h.connect("W")
			h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})

			got := h.DeleteRoom(DeleteRoomRequest{RoomID: tt.room, Password: tt.password})
			assert.Equal(t, tt.want, got)
			if !got.Success {
				assert.Len(t, h.GetRooms(), 1)
				return
			}
			assert.Empty(t, h.GetRooms())
			assert.Empty(t, h.Registry.BindingsOf("A"))
			deleted := watcher.events("roomDeleted")
			require.Len(t, deleted, 1)
			assert.JSONEq(t, `"r1"`, string(deleted[0].Data))
			assert.Equal(t, AckRoomNotFound, h.SendMessage(SendMessageRequest{RoomID: "r1", Message: "x"}).Error)
			assert.Eventually(t, func() bool { return h.feed.wasRemoved("r1") }, time.Second, 10*time.Millisecond)
		})
	}
}

func TestDeleteRoom_NoAdminPassword(t *testing.T) {
	h := newHarness(t)
	h.AdminPassword = ""
	h.mustCreate(t, "r1")
	assert.Equal(t, AckInvalidPassword, h.DeleteRoom(DeleteRoomRequest{RoomID: "r1", Password: ""}).Error)
}

func TestTouchRoom(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a := h.connect("A")
	before, _ := h.GetRoom("r1")

	time.Sleep(2 * time.Millisecond)
	h.TouchRoom(RoomRequest{RoomID: "r1"})
	h.TouchRoom(RoomRequest{RoomID: "missing"})

	after, _ := h.GetRoom("r1")
	assert.Greater(t, after.LastActivity, before.LastActivity)
	assert.Empty(t, a.events("roomUpdated"))
}

func TestBackpressure_KicksSlowConnection(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")
	a, slow := h.connect("A"), h.connect("S")
	h.JoinRoom(a, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	h.JoinRoom(slow, JoinRoomRequest{RoomID: "r1", Role: domain.RoleAnonymous, UserID: "u2"})
	slow.setFull(true)

	ack := h.SendMessage(SendMessageRequest{RoomID: "r1", Role: domain.RoleOwner, Message: "hi"})
	require.True(t, ack.Success)
	assert.True(t, slow.isClosed())
	assert.True(t, h.cancels["S"].Load())
	assert.False(t, a.isClosed())
}

func TestBackpressure_NoActionKeepsConnection(t *testing.T) {
	h := newHarness(t)
	h.Policy = app.StaticPolicy{Action: app.NoAction}
	h.mustCreate(t, "r1")
	slow := h.connect("S")
	h.JoinRoom(slow, JoinRoomRequest{RoomID: "r1", Role: domain.RoleOwner, UserID: "u1"})
	slow.setFull(true)

	h.SendMessage(SendMessageRequest{RoomID: "r1", Role: domain.RoleOwner, Message: "hi"})
	assert.False(t, slow.isClosed())
}

func TestConcurrentJoins_RoleExclusive(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "r1")

	conns := make([]*mockConn, 40)
	for i := range conns {
		conns[i] = h.connect(fmt.Sprintf("c%d", i))
	}
	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *mockConn) {
			defer wg.Done()
			role := domain.RoleOwner
			if i%2 == 1 {
				role = domain.RoleAnonymous
			}
			h.JoinRoom(c, JoinRoomRequest{RoomID: "r1", Role: role, UserID: domain.UserID(fmt.Sprintf("u%d", i))})
		}(i, c)
	}
	wg.Wait()

	snap, err := h.GetRoom("r1")
	require.NoError(t, err)
	counts := map[domain.Role]int{}
	for _, p := range snap.Participants {
		counts[p.Role]++
	}
	assert.Equal(t, 1, counts[domain.RoleOwner])
	assert.Equal(t, 1, counts[domain.RoleAnonymous])

	var full atomic.Int32
	for _, c := range conns {
		full.Add(int32(len(c.events("roomFull"))))
	}
	assert.Equal(t, int32(38), full.Load())
}

func TestCleanText(t *testing.T) {
	long := strings.Repeat("é", MaxMessageLen)
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", "hello", "hello", true},
		{"trimmed", "  hi \n", "hi", true},
		{"control stripped", "a\x07b\x00c", "abc", true},
		{"keeps newline", "a\nb", "a\nb", true},
		{"only control", "\x01\x02", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cleanText(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	got, ok := cleanText(long)
	require.True(t, ok)
	assert.LessOrEqual(t, len(got), MaxMessageLen)
	assert.True(t, strings.HasSuffix(got, "é"))
}
