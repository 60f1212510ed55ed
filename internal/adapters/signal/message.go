package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/app/orch"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/dkeye/Chatter/internal/metrics"
)

func (ctl *SignalWSController) handleSendMessage(conn *WsSignalConn, env envelope) {
	var p orch.SendMessageRequest
	if err := decode(env, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad sendMessage payload")
		ctl.reply(conn, env, orch.Ack{Error: orch.AckBadPayload})
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(conn.id) {
		metrics.RateLimitHits.Inc()
		log.Warn().Str("module", "signal").Str("conn_id", string(conn.id)).Msg("rate limited")
		ctl.reply(conn, env, orch.Ack{Error: orch.AckTooManyMessages})
		return
	}
	ctl.reply(conn, env, ctl.Orch.SendMessage(p))
}

func (ctl *SignalWSController) handleGetMessages(conn *WsSignalConn, env envelope) {
	var p orch.RoomRequest
	if err := decode(env, &p); err != nil {
		ctl.reply(conn, env, []domain.Entry{})
		return
	}
	ctl.reply(conn, env, ctl.Orch.GetMessages(p))
}
