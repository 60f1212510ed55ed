package app

import (
	"context"

	"github.com/dkeye/Chatter/internal/domain"
)

// FeedPublisher mirrors room history to an external sink. Calls are made off the
// request path; failures are logged and never affect room state.
type FeedPublisher interface {
	Publish(ctx context.Context, room domain.RoomID, e domain.Entry) error
	Remove(ctx context.Context, room domain.RoomID) error
}

type NopFeed struct{}

func (NopFeed) Publish(context.Context, domain.RoomID, domain.Entry) error { return nil }

func (NopFeed) Remove(context.Context, domain.RoomID) error { return nil }
