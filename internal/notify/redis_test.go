package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"boxshop-api/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHook answers commands in place of a Redis server and records them.
type recordingHook struct {
	mu      sync.Mutex
	cmds    [][]interface{}
	xlen    int64
	failErr error
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial not expected")
	}
}

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.record(cmd)
		if h.failErr != nil {
			cmd.SetErr(h.failErr)
			return h.failErr
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			h.record(cmd)
			if c, ok := cmd.(*redis.IntCmd); ok && cmd.Name() == "xlen" {
				c.SetVal(h.xlen)
			}
		}
		return nil
	}
}

func (h *recordingHook) record(cmd redis.Cmder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds = append(h.cmds, cmd.Args())
}

func (h *recordingHook) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.cmds))
	for i, args := range h.cmds {
		out[i] = fmt.Sprint(args[0])
	}
	return out
}

func newHookedClient(t *testing.T) (*redis.Client, *recordingHook) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	hook := &recordingHook{}
	client.AddHook(hook)
	return client, hook
}

func TestRedisNotifier_PurchaseAccepted(t *testing.T) {
	client, hook := newHookedClient(t)
	n := NewRedisNotifier(client, WithStream("shop:orders:"), WithMaxLen(50))

	ev := model.PurchaseEvent{ID: "e1", Actor: "alice", Category: "25mil", Quantity: 2, Timestamp: time.Unix(1700000000, 0)}
	require.NoError(t, n.PurchaseAccepted(context.Background(), ev))

	require.Len(t, hook.cmds, 1)
	args := hook.cmds[0]
	assert.Equal(t, "xadd", args[0])
	assert.Equal(t, "shop:orders", args[1])
	assert.Contains(t, args, "maxlen")
	assert.Contains(t, args, "~")
	assert.Contains(t, args, int64(50))
	assert.Contains(t, args, "alice")
	assert.Contains(t, args, FormatOrder(ev))
}

func TestRedisNotifier_PurchaseAcceptedError(t *testing.T) {
	client, hook := newHookedClient(t)
	hook.failErr = errors.New("READONLY")
	n := NewRedisNotifier(client)

	err := n.PurchaseAccepted(context.Background(), model.PurchaseEvent{ID: "e1", Actor: "a", Category: "1mil", Quantity: 1})
	assert.ErrorContains(t, err, "boxshop:orders")
	assert.ErrorIs(t, err, hook.failErr)
}

func TestRedisNotifier_ClearOrders(t *testing.T) {
	client, hook := newHookedClient(t)
	hook.xlen = 7
	n := NewRedisNotifier(client)

	cleared, err := n.ClearOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, cleared)

	names := hook.names()
	assert.Contains(t, names, "xlen")
	assert.Contains(t, names, "del")
}
