package orch

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/dkeye/Chatter/internal/metrics"
)

func (o *Orchestrator) CreateRoom(req CreateRoomRequest) Ack {
	room, err := o.Rooms.Create(req.RoomID, req.DisplayName, req.Password)
	switch {
	case errors.Is(err, core.ErrRoomExists):
		return failure(AckRoomExists)
	case errors.Is(err, core.ErrInvalidRoomID):
		return failure(AckInvalidRoomID)
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Str("room_id", string(req.RoomID)).Msg("create room")
		return failure(err.Error())
	}
	metrics.Rooms.Set(float64(o.Rooms.Len()))
	o.lobby(core.EventRoomCreated, room.Snapshot())
	return success()
}

// JoinRoom has no ack. Refusals reach the caller as roomNotFound or
// roomFull events.
func (o *Orchestrator) JoinRoom(conn core.SignalConnection, req JoinRoomRequest) {
	if err := req.UserID.Validate(); err != nil {
		o.notify(conn, core.EventError, Notice{Message: AckBadPayload})
		return
	}
	if err := req.Role.Validate(); err != nil {
		o.notify(conn, core.EventError, Notice{Message: AckBadPayload})
		return
	}

	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		o.rejectJoin(conn, req, "not_found")
		return
	}
	res, err := room.Join(req.UserID, req.Role, conn)
	switch {
	case errors.Is(err, core.ErrRoleFull):
		o.rejectJoin(conn, req, "role_full")
		return
	case errors.Is(err, core.ErrRoomNotFound):
		o.rejectJoin(conn, req, "not_found")
		return
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Str("room_id", string(req.RoomID)).Msg("join room")
		return
	}

	if !res.Rejoined {
		metrics.Participants.Inc()
	}
	metrics.NotificationsTotal.WithLabelValues(string(core.NotifyJoin)).Inc()
	if res.Replaced != "" {
		o.Registry.Release(res.Replaced, room.ID(), req.UserID)
	}
	if !o.Registry.Bind(conn.ID(), room.ID(), req.UserID) {
		// the connection went away while joining
		if lr, left := room.LeaveIfBound(req.UserID, conn.ID()); left {
			o.afterLeave(room.ID(), lr)
		}
		return
	}
	if !room.Seated(req.UserID, conn.ID()) {
		// evicted or left before the binding landed
		o.Registry.Release(conn.ID(), room.ID(), req.UserID)
		o.handleDelivery(room.ID(), res.Delivery)
		return
	}
	o.handleDelivery(room.ID(), res.Delivery)
	o.publish(room.ID(), res.Notification)
}

func (o *Orchestrator) rejectJoin(conn core.SignalConnection, req JoinRoomRequest, reason string) {
	metrics.JoinRejected.WithLabelValues(reason).Inc()
	log.Info().Str("module", "orch").Str("room_id", string(req.RoomID)).Str("user_id", string(req.UserID)).
		Str("role", string(req.Role)).Str("reason", reason).Msg("join rejected")
	if reason == "role_full" {
		o.notify(conn, core.EventRoomFull, Notice{Message: NoticeRoomFull})
		return
	}
	o.notify(conn, core.EventRoomNotFound, Notice{Message: NoticeRoomNotFound})
}

// LeaveRoom is silent when the room or the user is absent.
func (o *Orchestrator) LeaveRoom(req LeaveRoomRequest) {
	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		return
	}
	res, left := room.Leave(req.UserID)
	if !left {
		return
	}
	o.afterLeave(room.ID(), res)
}

func (o *Orchestrator) afterLeave(room domain.RoomID, res core.LeaveResult) {
	o.Registry.Release(res.Participant.ConnectionID, room, res.User)
	metrics.Participants.Dec()
	metrics.NotificationsTotal.WithLabelValues(string(core.NotifyLeave)).Inc()
	o.handleDelivery(room, res.Delivery)
	o.publish(room, res.Notification)
}

// DeleteRoom accepts the room's own password or the admin password.
func (o *Orchestrator) DeleteRoom(req DeleteRoomRequest) Ack {
	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		return failure(AckRoomNotFound)
	}
	if !room.CheckPassword(req.Password) && !o.isAdmin(req.Password) {
		log.Warn().Str("module", "orch").Str("room_id", string(req.RoomID)).Msg("delete refused")
		return failure(AckInvalidPassword)
	}
	if err := o.EvictRoom(req.RoomID, "request"); err != nil {
		return failure(AckRoomNotFound)
	}
	return success()
}

func (o *Orchestrator) isAdmin(password string) bool {
	if o.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.AdminPassword), []byte(password)) == 1
}

// EvictRoom deletes a room without any authorization and tells every
// connection about it.
func (o *Orchestrator) EvictRoom(id domain.RoomID, reason string) error {
	res, err := o.Rooms.Delete(id)
	if err != nil {
		return err
	}
	o.evicted(id, reason, res)
	return nil
}

// EvictStale is EvictRoom for the sweeper: the room goes only if it is still
// stale once its lock is held.
func (o *Orchestrator) EvictStale(id domain.RoomID, now time.Time, idle time.Duration) (string, error) {
	reason, res, err := o.Rooms.DeleteStale(id, now, idle)
	if err != nil {
		return "", err
	}
	o.evicted(id, reason, res)
	return reason, nil
}

func (o *Orchestrator) evicted(id domain.RoomID, reason string, res core.CloseResult) {
	o.Registry.ReleaseRoom(id)

	metrics.Rooms.Set(float64(o.Rooms.Len()))
	metrics.Participants.Sub(float64(len(res.Participants)))
	metrics.RoomsDeleted.WithLabelValues(reason).Inc()

	o.lobby(core.EventRoomDeleted, id)
	o.unpublish(id)
	log.Info().Str("module", "orch").Str("room_id", string(id)).Str("reason", reason).Msg("room evicted")
}

// TouchRoom records activity without broadcasting.
func (o *Orchestrator) TouchRoom(req RoomRequest) {
	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		return
	}
	room.Touch()
}

func (o *Orchestrator) GetRooms() []domain.RoomSnapshot {
	return o.Rooms.Snapshots()
}

func (o *Orchestrator) GetRoom(id domain.RoomID) (domain.RoomSnapshot, error) {
	room, err := o.Rooms.Get(id)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}
