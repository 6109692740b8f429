package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"phalanx/internal/scoring"

	"github.com/redis/go-redis/v9"
)

// RedisMirror pushes verdicts onto a Redis list, giving the reporting period
// a record that survives a process restart. The list is capped so an idle
// reporter cannot grow it without bound.
type RedisMirror struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(addr, password string, db int, key string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMirror{
		client: client,
		key:    key,
		maxLen: 10000,
	}, nil
}

func (m *RedisMirror) Name() string { return "redis" }

// Publish appends one verdict to the list and trims it to the cap.
func (m *RedisMirror) Publish(ctx context.Context, v *scoring.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.RPush(ctx, m.key, payload)
	pipe.LTrim(ctx, m.key, -m.maxLen, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
