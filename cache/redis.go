package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"occupancy-predictor/models"
)

const summaryKeyPrefix = "summary:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisClient stores room summaries as JSON under summary:<room_id> with a TTL.
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, opts RedisOptions) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return &RedisClient{client: rdb, ttl: opts.TTL}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) SaveSummary(ctx context.Context, summary models.RoomSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, summaryKeyPrefix+summary.RoomID, data, rc.ttl).Err()
}

// GetSummary returns nil, nil when the room has no live summary.
func (rc *RedisClient) GetSummary(ctx context.Context, roomID string) (*models.RoomSummary, error) {
	val, err := rc.client.Get(ctx, summaryKeyPrefix+roomID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary models.RoomSummary
	if err := json.Unmarshal(val, &summary); err != nil {
		return nil, fmt.Errorf("decode summary for %s: %w", roomID, err)
	}
	return &summary, nil
}
