package notify

import (
	"context"
	"fmt"
	"strings"

	"boxshop-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier appends accepted purchases to a capped Redis stream so other
// processes (dashboards, bots) can follow the order log.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisOption configures a RedisNotifier.
type RedisOption func(*RedisNotifier)

// WithStream overrides the stream key.
func WithStream(key string) RedisOption {
	return func(n *RedisNotifier) { n.stream = strings.Trim(key, ":") }
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(maxLen int64) RedisOption {
	return func(n *RedisNotifier) { n.maxLen = maxLen }
}

// NewRedisNotifier creates a stream-backed notifier.
func NewRedisNotifier(client *redis.Client, opts ...RedisOption) *RedisNotifier {
	n := &RedisNotifier{
		client: client,
		stream: "boxshop:orders",
		maxLen: 1000,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// PurchaseAccepted appends the purchase to the stream.
func (n *RedisNotifier) PurchaseAccepted(ctx context.Context, ev model.PurchaseEvent) error {
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":        ev.ID,
			"actor":     ev.Actor,
			"category":  string(ev.Category),
			"quantity":  ev.Quantity,
			"timestamp": ev.Timestamp.Unix(),
			"text":      FormatOrder(ev),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", n.stream, err)
	}
	return nil
}

// ClearOrders drops the stream and returns how many entries it held.
func (n *RedisNotifier) ClearOrders(ctx context.Context) (int, error) {
	pipe := n.client.TxPipeline()
	length := pipe.XLen(ctx, n.stream)
	pipe.Del(ctx, n.stream)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", n.stream, err)
	}
	return int(length.Val()), nil
}
