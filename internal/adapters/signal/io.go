package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn_id", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn_id", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn_id", string(c.id)).Msg("readPump closing")
		ctl.Orch.Disconnect(c.id)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(c.id)
		}
		c.Close()
		cancel()
	}()

	c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn_id", string(c.id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(c, data)
		}
	}
}

// envelope is an inbound event. Ack is echoed verbatim in the reply.
type envelope struct {
	Event string          `json:"event"`
	Ack   json.RawMessage `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ackFrame struct {
	Ack  json.RawMessage `json:"ack"`
	Data any             `json:"data"`
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn_id", string(c.id)).Msg("bad json")
		ctl.emit(c, core.EventError, map[string]string{"message": "bad_payload"})
		return
	}

	switch env.Event {
	case "createRoom":
		ctl.handleCreateRoom(c, env)
	case "joinRoom":
		ctl.handleJoinRoom(c, env)
	case "leaveRoom":
		ctl.handleLeaveRoom(c, env)
	case "deleteRoom":
		ctl.handleDeleteRoom(c, env)
	case "getRooms":
		ctl.reply(c, env, ctl.Orch.GetRooms())
	case "updateRoomActivity":
		ctl.handleTouch(c, env)
	case "sendMessage":
		ctl.handleSendMessage(c, env)
	case "getMessages":
		ctl.handleGetMessages(c, env)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown signal")
		ctl.emit(c, core.EventError, map[string]string{"message": "unknown event: " + env.Event})
	}
}

// decode reads the event payload into v. A missing payload leaves v zero.
func decode(env envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, v)
}

// reply answers an acknowledged event. Without an ack id there is no one
// waiting, so the reply is dropped.
func (ctl *SignalWSController) reply(c *WsSignalConn, env envelope, v any) {
	if len(env.Ack) == 0 {
		return
	}
	b, err := json.Marshal(ackFrame{Ack: env.Ack, Data: v})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("reply marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn_id", string(c.id)).Msg("reply dropped")
	}
}

func (ctl *SignalWSController) emit(c *WsSignalConn, event string, v any) {
	f, err := core.EncodeEvent(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("emit marshal")
		return
	}
	_ = c.TrySend(f)
}
