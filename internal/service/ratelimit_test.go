package service

import (
	"context"
	"testing"
	"time"

	"boxshop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceLog is an in-memory EventLog.
type sliceLog []model.PurchaseEvent

func (l sliceLog) SumWindow(_ context.Context, actor string, c model.Category, cutoff time.Time) (int, error) {
	total := 0
	for _, ev := range l {
		if ev.Actor == actor && ev.Category == c && ev.Timestamp.After(cutoff) {
			total += ev.Quantity
		}
	}
	return total, nil
}

func (l sliceLog) EarliestInWindow(_ context.Context, actor string, c model.Category, cutoff time.Time) (time.Time, error) {
	var earliest time.Time
	for _, ev := range l {
		if ev.Actor != actor || ev.Category != c || !ev.Timestamp.After(cutoff) {
			continue
		}
		if earliest.IsZero() || ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
	}
	return earliest, nil
}

func (l sliceLog) WindowTotals(_ context.Context, actor string, cutoff time.Time) (map[model.Category]int, error) {
	totals := make(map[model.Category]int)
	for _, ev := range l {
		if ev.Actor == actor && ev.Timestamp.After(cutoff) {
			totals[ev.Category] += ev.Quantity
		}
	}
	return totals, nil
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour
	policy := model.QuotaPolicy{Ceiling: 5, Window: day}
	cats := model.NewCategorySet([]string{"1mil", "10mil"})
	events := sliceLog{
		{Actor: "alice", Category: "1mil", Quantity: 2, Timestamp: testNow.Add(-20 * time.Hour)},
		{Actor: "alice", Category: "1mil", Quantity: 2, Timestamp: testNow.Add(-time.Hour)},
		{Actor: "alice", Category: "1mil", Quantity: 9, Timestamp: testNow.Add(-day)},
	}
	l := NewRateLimiter(events, policy, cats)

	remaining, err := l.RemainingQuota(ctx, "alice", "1mil", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	cooldown, err := l.CooldownRemaining(ctx, "alice", "1mil", testNow)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, cooldown)

	cooldown, err = l.CooldownRemaining(ctx, "alice", "10mil", testNow)
	require.NoError(t, err)
	assert.Zero(t, cooldown)

	remaining, err = l.RemainingQuota(ctx, "alice", "1mil", testNow.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	snap, err := l.QuotaSnapshot(ctx, "alice", testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Consumed("1mil"))
	assert.Zero(t, snap.Consumed("10mil"))
}

func TestQuotaPolicyBoundary(t *testing.T) {
	p := model.QuotaPolicy{Ceiling: 5, Window: 24 * time.Hour}
	ts := testNow

	assert.True(t, p.InWindow(ts, ts.Add(24*time.Hour-time.Second)))
	assert.False(t, p.InWindow(ts, ts.Add(24*time.Hour)))
	assert.Equal(t, time.Second, p.Cooldown(ts, ts.Add(24*time.Hour-time.Second)))
	assert.Zero(t, p.Cooldown(ts, ts.Add(24*time.Hour)))
	assert.Zero(t, p.Remaining(7))
	assert.Equal(t, 5, p.Remaining(0))
}
