package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/app/orch"
	"github.com/dkeye/Chatter/internal/core"
)

func (ctl *SignalWSController) handleCreateRoom(conn *WsSignalConn, env envelope) {
	var p orch.CreateRoomRequest
	if err := decode(env, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad createRoom payload")
		ctl.reply(conn, env, orch.Ack{Error: orch.AckBadPayload})
		return
	}
	log.Info().Str("module", "signal").Str("conn_id", string(conn.id)).Str("room_id", string(p.RoomID)).Msg("createRoom")
	ctl.reply(conn, env, ctl.Orch.CreateRoom(p))
}

func (ctl *SignalWSController) handleJoinRoom(conn *WsSignalConn, env envelope) {
	var p orch.JoinRoomRequest
	if err := decode(env, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad joinRoom payload")
		ctl.emit(conn, core.EventError, orch.Notice{Message: orch.AckBadPayload})
		return
	}
	log.Info().Str("module", "signal").Str("conn_id", string(conn.id)).Str("room_id", string(p.RoomID)).
		Str("user_id", string(p.UserID)).Str("role", string(p.Role)).Msg("joinRoom")
	ctl.Orch.JoinRoom(conn, p)
}

func (ctl *SignalWSController) handleLeaveRoom(conn *WsSignalConn, env envelope) {
	var p orch.LeaveRoomRequest
	if err := decode(env, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad leaveRoom payload")
		return
	}
	log.Info().Str("module", "signal").Str("conn_id", string(conn.id)).Str("room_id", string(p.RoomID)).
		Str("user_id", string(p.UserID)).Msg("leaveRoom")
	ctl.Orch.LeaveRoom(p)
}

func (ctl *SignalWSController) handleDeleteRoom(conn *WsSignalConn, env envelope) {
	var p orch.DeleteRoomRequest
	if err := decode(env, &p); err != nil {
		ctl.reply(conn, env, orch.Ack{Error: orch.AckBadPayload})
		return
	}
	ctl.reply(conn, env, ctl.Orch.DeleteRoom(p))
}

func (ctl *SignalWSController) handleTouch(_ *WsSignalConn, env envelope) {
	var p orch.RoomRequest
	if err := decode(env, &p); err != nil {
		return
	}
	ctl.Orch.TouchRoom(p)
}
