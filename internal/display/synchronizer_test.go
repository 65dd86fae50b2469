package display

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"boxshop-api/internal/messaging"
	"boxshop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointerKey = "stock_message_id"

type countingChannel struct {
	*messaging.MemoryChannel
	creates  atomic.Int32
	edits    atomic.Int32
	editErr  error
	editGate chan struct{}
}

func newCountingChannel() *countingChannel {
	return &countingChannel{MemoryChannel: messaging.NewMemoryChannel()}
}

func (c *countingChannel) Create(ctx context.Context, content string) (string, error) {
	c.creates.Add(1)
	return c.MemoryChannel.Create(ctx, content)
}

func (c *countingChannel) Edit(ctx context.Context, id, content string) error {
	c.edits.Add(1)
	if c.editGate != nil {
		<-c.editGate
	}
	if c.editErr != nil {
		return c.editErr
	}
	return c.MemoryChannel.Edit(ctx, id, content)
}

type mapPointers struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMapPointers() *mapPointers {
	return &mapPointers{values: make(map[string]string)}
}

func (m *mapPointers) GetMeta(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapPointers) SetMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mapPointers) pointer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[pointerKey]
}

func staticContent(s string) ContentFunc {
	return func(context.Context) (string, error) { return s, nil }
}

func TestSynchronizer_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("creates once then edits in place", func(t *testing.T) {
		ch, ptrs := newCountingChannel(), newMapPointers()
		s := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})

		require.NoError(t, s.Refresh(ctx, "v1"))
		require.NoError(t, s.Refresh(ctx, "v2"))

		assert.EqualValues(t, 1, ch.creates.Load())
		assert.EqualValues(t, 1, ch.edits.Load())
		assert.Equal(t, 1, ch.Len())
		content, ok := ch.Content(ptrs.pointer())
		require.True(t, ok)
		assert.Equal(t, "v2", content)
	})

	t.Run("recreates after out-of-band delete", func(t *testing.T) {
		ch, ptrs := newCountingChannel(), newMapPointers()
		s := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})

		require.NoError(t, s.Refresh(ctx, "v1"))
		first := ptrs.pointer()
		require.NoError(t, ch.Delete(ctx, first))

		require.NoError(t, s.Refresh(ctx, "v2"))
		second := ptrs.pointer()
		assert.NotEqual(t, first, second)
		assert.EqualValues(t, 2, ch.creates.Load())
		assert.Equal(t, 1, ch.Len())

		require.NoError(t, s.Refresh(ctx, "v3"))
		assert.EqualValues(t, 2, ch.creates.Load())
		assert.Equal(t, second, ptrs.pointer())
		content, _ := ch.Content(second)
		assert.Equal(t, "v3", content)
	})

	t.Run("transient edit failure never creates", func(t *testing.T) {
		ch, ptrs := newCountingChannel(), newMapPointers()
		s := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})
		require.NoError(t, s.Refresh(ctx, "v1"))
		first := ptrs.pointer()

		ch.editErr = errors.New("502 bad gateway")
		err := s.Refresh(ctx, "v2")
		require.ErrorIs(t, err, model.ErrDisplaySyncFailed)

		assert.EqualValues(t, 1, ch.creates.Load())
		assert.Equal(t, first, ptrs.pointer())
		assert.Equal(t, 1, ch.Len())
	})

	t.Run("failed pointer save does not duplicate", func(t *testing.T) {
		ch, ptrs := newCountingChannel(), newMapPointers()
		ptrs.setErr = errors.New("disk full")
		s := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})

		require.Error(t, s.Refresh(ctx, "v1"))
		ptrs.setErr = nil
		require.NoError(t, s.Refresh(ctx, "v2"))

		assert.EqualValues(t, 1, ch.creates.Load())
		assert.Equal(t, 1, ch.Len())
	})

	t.Run("restart after failed pointer save keeps one message", func(t *testing.T) {
		ch, ptrs := newCountingChannel(), newMapPointers()
		s := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})

		require.NoError(t, s.Refresh(ctx, "v1"))
		stale := ptrs.pointer()
		require.NoError(t, ch.Delete(ctx, stale))

		ptrs.setErr = errors.New("disk full")
		require.Error(t, s.Refresh(ctx, "v2"))
		ptrs.setErr = nil
		require.NoError(t, s.Refresh(ctx, "v3"))

		live := ptrs.pointer()
		assert.NotEqual(t, stale, live)
		content, ok := ch.Content(live)
		require.True(t, ok)
		assert.Equal(t, "v3", content)

		restarted := NewSynchronizer(ch, ptrs, staticContent(""), Config{PointerKey: pointerKey})
		require.NoError(t, restarted.Refresh(ctx, "v4"))

		assert.Equal(t, 1, ch.Len())
		assert.EqualValues(t, 2, ch.creates.Load())
		content, _ = ch.Content(live)
		assert.Equal(t, "v4", content)
	})

	t.Run("missing pointer key", func(t *testing.T) {
		s := NewSynchronizer(newCountingChannel(), newMapPointers(), staticContent(""), Config{})
		assert.ErrorIs(t, s.Refresh(ctx, "v1"), model.ErrDisplaySyncFailed)
	})
}

func TestSynchronizer_TriggerCoalesces(t *testing.T) {
	ch, ptrs := newCountingChannel(), newMapPointers()
	var renders atomic.Int32
	content := func(context.Context) (string, error) {
		n := renders.Add(1)
		return "render " + string(rune('0'+n)), nil
	}
	s := NewSynchronizer(ch, ptrs, content, Config{Timeout: time.Second, PointerKey: pointerKey})

	require.NoError(t, s.Refresh(context.Background(), "initial"))

	ch.editGate = make(chan struct{})
	s.Trigger()
	require.Eventually(t, func() bool { return ch.edits.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		s.Trigger()
	}
	close(ch.editGate)
	s.Wait()

	assert.EqualValues(t, 2, renders.Load())
	assert.EqualValues(t, 2, ch.edits.Load())
	assert.EqualValues(t, 1, ch.creates.Load())
}

func TestRenderStock(t *testing.T) {
	got := RenderStock([]model.StockRecord{{Category: "1mil", Quantity: 3}, {Category: "10mil", Quantity: 0}})
	assert.Equal(t, "📦 **Current Stock:**\n1mil: 3\n10mil: 0", got)
}
