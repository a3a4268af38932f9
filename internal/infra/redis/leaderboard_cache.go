package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-game-service/internal/domain"
)

// LeaderboardSource computes a fresh leaderboard; in practice the game
// service.
type LeaderboardSource interface {
	GetLeaderboard(ctx context.Context, gameID int64) (*domain.Leaderboard, error)
}

// LeaderboardCache caches leaderboard snapshots in Redis so a roomful of
// pollers does not hammer the aggregate query. Misses are coalesced through
// singleflight; cache writes are best-effort.
type LeaderboardCache struct {
	client *redis.Client
	source LeaderboardSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, source LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		source: source,
		ttl:    ttl,
	}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context, gameID int64) (*domain.Leaderboard, error) {
	key := c.key(gameID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		lb := new(domain.Leaderboard)
		if err := json.Unmarshal(raw, lb); err == nil {
			return lb, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			lb := new(domain.Leaderboard)
			if err := json.Unmarshal(raw, lb); err == nil {
				return lb, nil
			}
		}

		lb, err := c.source.GetLeaderboard(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(lb); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return lb, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Leaderboard), nil
}

// Invalidate drops the cached snapshot, e.g. right after an elimination.
func (c *LeaderboardCache) Invalidate(ctx context.Context, gameID int64) {
	_ = c.client.Del(ctx, c.key(gameID)).Err()
}

func (c *LeaderboardCache) key(gameID int64) string {
	return fmt.Sprintf("game:%d:leaderboard", gameID)
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
