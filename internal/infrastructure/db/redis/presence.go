package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey   = "presence:online"
	lastSeenHash   = "presence:last_seen"
	livenessPrefix = "presence:alive:"
)

// PresenceStore records the online/last-seen liveness signal in Redis.
// Membership in the online set is backed by a per-subject liveness key with
// a TTL slightly above the heartbeat interval, so a crashed client that
// never wrote its offline mark expires naturally.
type PresenceStore struct {
	client   *redis.Client
	liveness time.Duration
}

// NewPresenceStore wraps the given client. heartbeatInterval sizes the
// liveness TTL; pass the same interval the heartbeat writes at.
func NewPresenceStore(client *redis.Client, heartbeatInterval time.Duration) *PresenceStore {
	return &PresenceStore{client: client, liveness: heartbeatInterval + heartbeatInterval/2}
}

// MarkOnline adds the subject to the online set, refreshes its liveness key,
// and records the last-seen timestamp.
func (p *PresenceStore) MarkOnline(ctx context.Context, id string, at time.Time) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, onlineSetKey, id)
	pipe.Set(ctx, livenessPrefix+id, "1", p.liveness)
	pipe.HSet(ctx, lastSeenHash, id, at.Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

// MarkOffline removes the subject from the online set and records when it
// was last seen.
func (p *PresenceStore) MarkOffline(ctx context.Context, id string, at time.Time) error {
	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, onlineSetKey, id)
	pipe.Del(ctx, livenessPrefix+id)
	pipe.HSet(ctx, lastSeenHash, id, at.Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

// CountOnline returns the number of subjects currently in the online set,
// evicting members whose liveness key has expired.
func (p *PresenceStore) CountOnline(ctx context.Context) (int64, error) {
	members, err := p.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count online: %w", err)
	}

	var online int64
	for _, id := range members {
		n, err := p.client.Exists(ctx, livenessPrefix+id).Result()
		if err != nil {
			return 0, fmt.Errorf("count online: %w", err)
		}
		if n > 0 {
			online++
			continue
		}
		// Stale member: the client died without an offline mark.
		p.client.SRem(ctx, onlineSetKey, id)
	}
	return online, nil
}

// LastSeen returns the recorded last-seen time for a subject, or the zero
// time when none exists.
func (p *PresenceStore) LastSeen(ctx context.Context, id string) (time.Time, error) {
	ts, err := p.client.HGet(ctx, lastSeenHash, id).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last seen: %w", err)
	}
	return time.Unix(ts, 0).UTC(), nil
}
