package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/companionchat/companion-api/api"
	"github.com/companionchat/companion-api/feed"
)

// Redis provides caching in Redis for the most recent page of the global
// feed.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	feedPrefix = "feed"
	maxSize    = 20
)

// ListFeed returns the cached feed messages sorted by creation time in
// descending order.
func (r *Redis) ListFeed(ctx context.Context) ([]api.FeedMessage, error) {
	vals, err := r.cli.ZRevRangeByScore(ctx, feedPrefix, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().UnixNano()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}

	out := make([]api.FeedMessage, len(vals))
	for i, key := range vals {
		var msg feedMessage
		if err := r.cli.HGetAll(ctx, key).Scan(&msg); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		out[i] = msg.APIFeedMessage()
	}

	return out, nil
}

// InsertFeedMessage adds the message to Redis with feed:MESSAGE_ID as the
// key and adds the key to a sorted set ordered by creation time.
func (r *Redis) InsertFeedMessage(ctx context.Context, msg api.FeedMessage) error {
	m := &feedMessage{
		ID:         msg.ID,
		Text:       msg.Text,
		UserID:     msg.UserID,
		UserName:   msg.UserName,
		UserAvatar: msg.UserAvatar,
		Emotion:    string(msg.Emotion),
		Likes:      msg.Likes,
		Dislikes:   msg.Dislikes,
		Score:      msg.Score,
		CreatedAt:  msg.CreatedAt,
	}

	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			key := fmt.Sprintf("%s:%s", feedPrefix, m.ID)
			pipe.HSet(ctx, key, m)
			pipe.ZAdd(ctx, feedPrefix, redis.Z{
				Score:  float64(msg.CreatedAt.UnixNano()),
				Member: key,
			})

			return nil
		})
		return err
	}, m.ID)
	if err != nil {
		return fmt.Errorf("redis insert feed message: %w", err)
	}

	// Keep only the newest page by removing the oldest keys when the max
	// cache size is exceeded.
	if err := r.evictOldest(ctx); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// ApplyVote moves the cached vote counters by the reconciled deltas. A
// message that is not cached is left alone.
func (r *Redis) ApplyVote(ctx context.Context, messageID string, change feed.Change) error {
	key := fmt.Sprintf("%s:%s", feedPrefix, messageID)

	exists, err := r.cli.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if exists == 0 {
		return nil
	}

	_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "likes", int64(change.Likes))
		pipe.HIncrBy(ctx, key, "dislikes", int64(change.Dislikes))
		pipe.HIncrBy(ctx, key, "score", int64(change.Score))
		return nil
	})
	if err != nil {
		return fmt.Errorf("incr counters: %w", err)
	}
	return nil
}

func (r *Redis) evictOldest(ctx context.Context) error {
	vals, err := r.cli.ZRange(ctx, feedPrefix, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}

	for _, key := range vals {
		_ = r.cli.ZRem(ctx, feedPrefix, key).Err()
		_ = r.cli.Del(ctx, key).Err()
	}

	return nil
}
