package core

import (
	"maps"

	"github.com/dkeye/Chatter/internal/domain"
)

// ParticipantTable maps users to their occupied role. Exclusive roles have at
// most one holder. Like MessageLog it relies on the Room lock.
type ParticipantTable struct {
	byUser  map[domain.UserID]domain.Participant
	holders map[domain.Role]domain.UserID
}

func NewParticipantTable() *ParticipantTable {
	return &ParticipantTable{
		byUser:  make(map[domain.UserID]domain.Participant),
		holders: make(map[domain.Role]domain.UserID),
	}
}

// Join seats user in role. A user re-joining the role they already hold is
// accepted and the entry is refreshed; only a different holder makes the
// role full. The previous entry of user, if any, is returned.
func (t *ParticipantTable) Join(user domain.UserID, role domain.Role, conn domain.ConnectionID, joinedAt int64) (prev domain.Participant, existed bool, err error) {
	if role.Exclusive() {
		if holder, taken := t.holders[role]; taken && holder != user {
			return domain.Participant{}, false, ErrRoleFull
		}
	}

	prev, existed = t.byUser[user]
	if existed && prev.Role != role && t.holders[prev.Role] == user {
		delete(t.holders, prev.Role)
	}
	t.byUser[user] = domain.Participant{Role: role, ConnectionID: conn, JoinedAt: joinedAt}
	if role.Exclusive() {
		t.holders[role] = user
	}
	return prev, existed, nil
}

// Leave removes user and returns the removed entry.
func (t *ParticipantTable) Leave(user domain.UserID) (domain.Participant, bool) {
	p, ok := t.byUser[user]
	if !ok {
		return domain.Participant{}, false
	}
	delete(t.byUser, user)
	if t.holders[p.Role] == user {
		delete(t.holders, p.Role)
	}
	return p, true
}

func (t *ParticipantTable) Get(user domain.UserID) (domain.Participant, bool) {
	p, ok := t.byUser[user]
	return p, ok
}

// Holder returns the user occupying an exclusive role.
func (t *ParticipantTable) Holder(role domain.Role) (domain.UserID, bool) {
	u, ok := t.holders[role]
	return u, ok
}

// ByConnection lists users bound to conn.
func (t *ParticipantTable) ByConnection(conn domain.ConnectionID) []domain.UserID {
	var out []domain.UserID
	for u, p := range t.byUser {
		if p.ConnectionID == conn {
			out = append(out, u)
		}
	}
	return out
}

// References reports whether any entry is bound to conn.
func (t *ParticipantTable) References(conn domain.ConnectionID) bool {
	for _, p := range t.byUser {
		if p.ConnectionID == conn {
			return true
		}
	}
	return false
}

func (t *ParticipantTable) Len() int { return len(t.byUser) }

func (t *ParticipantTable) Snapshot() map[domain.UserID]domain.Participant {
	return maps.Clone(t.byUser)
}
