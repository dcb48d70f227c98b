package services

import (
	"context"
	"errors"
	"time"

	"chess-matchmaking/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisMailbox keeps pending results in Redis so they survive a restart of
// this process. Expiry is left to the key TTL.
type RedisMailbox struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisMailbox(client *redis.Client, prefix string, ttl time.Duration) *RedisMailbox {
	if prefix == "" {
		prefix = "matchmaking:mailbox:"
	}
	return &RedisMailbox{client: client, prefix: prefix, ttl: ttl}
}

func (m *RedisMailbox) key(playerID string) string {
	return m.prefix + playerID
}

func (m *RedisMailbox) Put(ctx context.Context, playerID string, result models.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "failed to encode match result")
	}
	if err := m.client.Set(ctx, m.key(playerID), data, m.ttl).Err(); err != nil {
		return eris.Wrapf(err, "failed to store match result for %s", playerID)
	}
	return nil
}

func (m *RedisMailbox) Take(ctx context.Context, playerID string) (*models.MatchResult, error) {
	data, err := m.client.GetDel(ctx, m.key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to take match result for %s", playerID)
	}

	var result models.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrap(err, "failed to decode match result")
	}
	return &result, nil
}

// Sweep is a no-op; Redis expires the keys itself.
func (m *RedisMailbox) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}
