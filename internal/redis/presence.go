package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/proto"
	"github.com/mossy-p/signaling-relay/internal/relay"
)

// Presence mirrors room membership into Redis hashes keyed
// room:<name>:members (user id -> display name) for external consumers.
// The relay never reads it back.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewPresence returns a mirror writing through client with the given key TTL.
func NewPresence(client *redis.Client, ttl time.Duration, log *zap.Logger) *Presence {
	return &Presence{client: client, ttl: ttl, log: log.Named("presence")}
}

func membersKey(room string) string {
	return "room:" + room + ":members"
}

// Observe writes every membership view the relay publishes until ctx is done.
// It satisfies relay.Observer. Views published while a write is in flight are
// coalesced into the latest one.
func (p *Presence) Observe(ctx context.Context, r *relay.Relay) {
	log := p.log.With(zap.String("room", r.Name()))
	sub := r.Watch()
	for {
		if err := p.Store(ctx, r.Name(), sub.Members); err != nil && ctx.Err() == nil {
			log.Warn("failed to mirror membership", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-sub.Changed:
			sub = r.Watch()
		}
	}
}

// Store replaces the mirrored membership of room.
func (p *Presence) Store(ctx context.Context, room string, members proto.Membership) error {
	key := membersKey(room)
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) == 0 {
			return nil
		}
		fields := make(map[string]any, len(members))
		for id, m := range members {
			fields[id] = m.DisplayName
		}
		pipe.HSet(ctx, key, fields)
		if p.ttl > 0 {
			pipe.Expire(ctx, key, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store membership of %s: %w", room, err)
	}
	return nil
}

// Members returns the mirrored membership of room.
func (p *Presence) Members(ctx context.Context, room string) (map[string]string, error) {
	members, err := p.client.HGetAll(ctx, membersKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("load membership of %s: %w", room, err)
	}
	return members, nil
}
