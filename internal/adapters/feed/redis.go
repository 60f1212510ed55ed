package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/domain"
)

// entryTTL bounds how long a room's mirrored history outlives its last write.
const entryTTL = 24 * time.Hour

// RedisFeed mirrors room history to Redis for the global feed: every entry
// is published on the room channel and kept in a capped sorted set scored
// by server timestamp.
type RedisFeed struct {
	client    *redis.Client
	prefix    string
	retention int64
}

func NewRedisFeed(ctx context.Context, redisURL, prefix string, retention int64) (*RedisFeed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("module", "feed").Str("addr", opts.Addr).Str("prefix", prefix).Msg("redis feed connected")
	return newRedisFeed(client, prefix, retention), nil
}

func newRedisFeed(client *redis.Client, prefix string, retention int64) *RedisFeed {
	if prefix == "" {
		prefix = "chatter"
	}
	return &RedisFeed{client: client, prefix: prefix, retention: retention}
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}

func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// roomChannel is the pub/sub channel of a room.
func roomChannel(prefix string, id domain.RoomID) string {
	return fmt.Sprintf("%s:room:%s", prefix, id)
}

// roomEntriesKey is the sorted set holding a room's recent entries.
func roomEntriesKey(prefix string, id domain.RoomID) string {
	return fmt.Sprintf("%s:room:%s:entries", prefix, id)
}

// lobbyChannel carries room lifecycle events.
func lobbyChannel(prefix string) string {
	return prefix + ":rooms"
}

func (f *RedisFeed) Publish(ctx context.Context, room domain.RoomID, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := roomEntriesKey(f.prefix, room)

	pipe := f.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(e.ServerTimestamp),
		Member: string(data),
	})
	if f.retention > 0 {
		// keep the newest retention entries
		pipe.ZRemRangeByRank(ctx, key, 0, -f.retention-1)
	}
	pipe.Expire(ctx, key, entryTTL)
	pipe.Publish(ctx, roomChannel(f.prefix, room), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

type lobbyEvent struct {
	Event  string        `json:"event"`
	RoomID domain.RoomID `json:"roomId"`
}

func (f *RedisFeed) Remove(ctx context.Context, room domain.RoomID) error {
	data, err := json.Marshal(lobbyEvent{Event: "roomDeleted", RoomID: room})
	if err != nil {
		return err
	}
	pipe := f.client.TxPipeline()
	pipe.Del(ctx, roomEntriesKey(f.prefix, room))
	pipe.Publish(ctx, lobbyChannel(f.prefix), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove %s: %w", room, err)
	}
	return nil
}
