package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

// Evictor deletes a room on behalf of the sweeper if it is still stale at
// now, and returns why it went.
type Evictor interface {
	EvictStale(id domain.RoomID, now time.Time, idle time.Duration) (string, error)
}

// Sweeper periodically removes rooms that are past their expiry or have
// been idle for IdleTimeout.
type Sweeper struct {
	Rooms       *core.RoomRegistry
	Evictor     Evictor
	Clock       core.Clock
	Interval    time.Duration
	IdleTimeout time.Duration
}

func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.sweeper").Dur("interval", interval).Dur("idle_timeout", s.IdleTimeout).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(s.Clock.Now())
		}
	}
}

// Sweep runs one pass and returns the number of rooms evicted.
func (s *Sweeper) Sweep(now time.Time) int {
	evicted := 0
	for _, room := range s.Rooms.List() {
		if _, stale := room.Stale(now, s.IdleTimeout); !stale {
			continue
		}
		reason, err := s.Evictor.EvictStale(room.ID(), now, s.IdleTimeout)
		if err != nil {
			log.Debug().Err(err).Str("module", "app.sweeper").Str("room_id", string(room.ID())).Msg("evict skipped")
			continue
		}
		log.Debug().Str("module", "app.sweeper").Str("room_id", string(room.ID())).Str("reason", reason).Msg("evicted")
		evicted++
	}
	if evicted > 0 {
		log.Info().Str("module", "app.sweeper").Int("evicted", evicted).Msg("sweep done")
	}
	return evicted
}
