package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
)

// DefaultQueueName is the list the caption worker consumes with BLPOP.
const DefaultQueueName = "caption-jobs"

// CaptionQueue pushes caption jobs onto a Redis list.
type CaptionQueue struct {
	client redis.UniversalClient
	name   string
}

var _ core.CaptionQueue = (*CaptionQueue)(nil)

// NewCaptionQueue creates a list-backed queue. An empty name uses DefaultQueueName.
func NewCaptionQueue(client redis.UniversalClient, name string) *CaptionQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &CaptionQueue{client: client, name: name}
}

// Enqueue appends msg to the tail of the list so the worker sees jobs in FIFO order.
func (q *CaptionQueue) Enqueue(ctx context.Context, msg model.CaptionJobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal caption job message: %w", err)
	}
	if err := q.client.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next message. It returns (nil, nil) on timeout.
// It is the consumer side of the list contract; the API itself only enqueues.
func (q *CaptionQueue) Pop(ctx context.Context, timeout time.Duration) (*model.CaptionJobMessage, error) {
	res, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil //nolint:nilnil // timeout is not an error
		}
		return nil, fmt.Errorf("redis blpop %s: %w", q.name, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected blpop reply of %d elements", len(res))
	}
	var msg model.CaptionJobMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal caption job message: %w", err)
	}
	return &msg, nil
}

// Depth returns the number of messages waiting in the list.
func (q *CaptionQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", q.name, err)
	}
	return n, nil
}

// Health pings Redis.
func (q *CaptionQueue) Health(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
