package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/dkeye/Chatter/internal/metrics"
)

const feedTimeout = 3 * time.Second

// Orchestrator coordinates connections with rooms. Every event a transport
// receives ends up in one of its methods; room state itself is guarded by
// the rooms, so the orchestrator holds no lock of its own.
type Orchestrator struct {
	Rooms    *core.RoomRegistry
	Registry *app.Registry
	Policy   app.Policy
	Feed     app.FeedPublisher
	// AdminPassword, when set, may delete any room.
	AdminPassword string
}

// Connect registers a live connection. cancel stops its pumps.
func (o *Orchestrator) Connect(conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Register(conn, cancel)
	metrics.Connections.Set(float64(o.Registry.Count()))
}

// Disconnect is an implicit leave from every room the connection is bound
// to. It is safe to call more than once.
func (o *Orchestrator) Disconnect(id domain.ConnectionID) {
	bindings, ok := o.Registry.Unregister(id)
	if !ok {
		return
	}
	metrics.Connections.Set(float64(o.Registry.Count()))

	for _, b := range bindings {
		room, err := o.Rooms.Get(b.Room)
		if err != nil {
			continue
		}
		res, left := room.LeaveIfBound(b.User, id)
		if !left {
			continue
		}
		o.afterLeave(room.ID(), res)
	}
	log.Info().Str("module", "orch").Str("conn_id", string(id)).Int("bindings", len(bindings)).Msg("disconnected")
}

// Kick closes a connection; cleanup follows from its read pump exiting.
func (o *Orchestrator) Kick(conn core.SignalConnection) {
	conn.Close()
	o.Registry.Cancel(conn.ID())
	log.Warn().Str("module", "orch").Str("conn_id", string(conn.ID())).Msg("kicked connection")
}

func (o *Orchestrator) handleDelivery(room domain.RoomID, res core.PublishResult) {
	if len(res.Dropped) == 0 {
		return
	}
	metrics.BroadcastDropped.Add(float64(len(res.Dropped)))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		action := o.Policy.OnBackPressure(room, slow)
		log.Warn().Str("module", "orch").Str("room_id", string(room)).Str("conn_id", string(slow.ID())).
			Stringer("action", action).Msg("backpressure")
		switch action {
		case app.KickMember:
			o.Kick(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// notify pushes an unsolicited event to a single connection.
func (o *Orchestrator) notify(conn core.SignalConnection, event string, data any) {
	f, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode notice")
		return
	}
	if err := conn.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn_id", string(conn.ID())).Str("event", event).Msg("notice not delivered")
	}
}

// lobby pushes an event to every live connection.
func (o *Orchestrator) lobby(event string, data any) {
	f, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode lobby event")
		return
	}
	var res core.PublishResult
	for _, c := range o.Registry.Connections() {
		if err := c.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SendTo++
	}
	o.handleDelivery("", res)
}

func (o *Orchestrator) publish(room domain.RoomID, e domain.Entry) {
	if o.Feed == nil {
		return
	}
	go o.feedCall("publish", room, func(ctx context.Context) error {
		return o.Feed.Publish(ctx, room, e)
	})
}

func (o *Orchestrator) unpublish(room domain.RoomID) {
	if o.Feed == nil {
		return
	}
	go o.feedCall("remove", room, func(ctx context.Context) error {
		return o.Feed.Remove(ctx, room)
	})
}

func (o *Orchestrator) feedCall(op string, room domain.RoomID, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), feedTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	metrics.FeedLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedErrors.WithLabelValues(op).Inc()
		log.Warn().Err(err).Str("module", "orch").Str("room_id", string(room)).Str("op", op).Msg("feed write failed")
	}
}
