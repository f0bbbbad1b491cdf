package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnreadCache keeps per-user unread counters in Redis so badge reads skip
// the store. A nil cache degrades to direct counting.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCache instantiates the cache helper.
func NewUnreadCache(client *redis.Client, ttl time.Duration) *UnreadCache {
	return &UnreadCache{client: client, ttl: ttl}
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("notification:unread:%d", userID)
}

// Get returns the cached count, reporting whether a value was present.
func (c *UnreadCache) Get(ctx context.Context, userID int64) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	count, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count with the configured TTL.
func (c *UnreadCache) Set(ctx context.Context, userID, count int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, unreadKey(userID), count, c.ttl).Err()
}

// Invalidate drops the cached count after any write touching the user's
// notifications.
func (c *UnreadCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadKey(id)
	}
	_ = c.client.Del(ctx, keys...).Err()
}
