package progress

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisTracker stores the per-job key space as flat string keys
// (import:<id>:status, import:<id>:processed, ...). The processed counter
// uses INCRBY so parallel work units can update it without coordination.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func key(id, field string) string {
	return "import:" + id + ":" + field
}

func (t *RedisTracker) Init(ctx context.Context, id, source string) error {
	err := t.client.MSet(ctx,
		key(id, "status"), string(StatusQueued),
		key(id, "message"), "Queued",
		key(id, "processed"), "0",
		key(id, "total"), "0",
		key(id, "source"), source,
	).Err()
	if err != nil {
		return fmt.Errorf("init job %s: %w", id, err)
	}
	return nil
}

func (t *RedisTracker) SetStatus(ctx context.Context, id string, status Status, message string) error {
	err := t.client.MSet(ctx,
		key(id, "status"), string(status),
		key(id, "message"), message,
	).Err()
	if err != nil {
		return fmt.Errorf("set status for job %s: %w", id, err)
	}
	return nil
}

func (t *RedisTracker) SetMessage(ctx context.Context, id, message string) error {
	if err := t.client.Set(ctx, key(id, "message"), message, 0).Err(); err != nil {
		return fmt.Errorf("set message for job %s: %w", id, err)
	}
	return nil
}

func (t *RedisTracker) SetTotal(ctx context.Context, id string, total int64) error {
	if err := t.client.Set(ctx, key(id, "total"), total, 0).Err(); err != nil {
		return fmt.Errorf("set total for job %s: %w", id, err)
	}
	return nil
}

func (t *RedisTracker) AddProcessed(ctx context.Context, id string, n int64) (int64, error) {
	processed, err := t.client.IncrBy(ctx, key(id, "processed"), n).Result()
	if err != nil {
		return 0, fmt.Errorf("increment processed for job %s: %w", id, err)
	}
	return processed, nil
}

func (t *RedisTracker) Get(ctx context.Context, id string) (Snapshot, error) {
	vals, err := t.client.MGet(ctx,
		key(id, "status"),
		key(id, "message"),
		key(id, "processed"),
		key(id, "total"),
		key(id, "source"),
	).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("get job %s: %w", id, err)
	}

	if vals[0] == nil {
		return Snapshot{Status: StatusUnknown}, nil
	}

	snap := Snapshot{
		Status:    Status(asString(vals[0])),
		Message:   asString(vals[1]),
		Processed: asInt64(vals[2]),
		Total:     asInt64(vals[3]),
		Source:    asString(vals[4]),
	}
	snap.Progress = Percent(snap.Processed, snap.Total)
	return snap, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
