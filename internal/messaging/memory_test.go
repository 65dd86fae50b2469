package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryChannel(t *testing.T) {
	ctx := context.Background()
	ch := NewMemoryChannel()

	first, err := ch.Create(ctx, "a")
	require.NoError(t, err)
	second, err := ch.Create(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, ch.Edit(ctx, first, "a2"))
	content, ok := ch.Content(first)
	require.True(t, ok)
	assert.Equal(t, "a2", content)

	ids, err := ch.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, ids)

	require.NoError(t, ch.Delete(ctx, first))
	require.NoError(t, ch.Delete(ctx, first))
	assert.ErrorIs(t, ch.Edit(ctx, first, "x"), ErrNotFound)
	assert.Equal(t, 1, ch.Len())
}
