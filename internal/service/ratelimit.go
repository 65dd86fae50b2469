package service

import (
	"context"
	"time"

	"boxshop-api/internal/model"
)

// EventLog is the read side of the purchase log the rate limiter needs.
type EventLog interface {
	SumWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (int, error)
	EarliestInWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (time.Time, error)
	WindowTotals(ctx context.Context, actor string, cutoff time.Time) (map[model.Category]int, error)
}

// RateLimiter derives quota state from the purchase log. It keeps no state
// of its own; the log is the only source of truth.
type RateLimiter struct {
	log        EventLog
	policy     model.QuotaPolicy
	categories model.CategorySet
}

// NewRateLimiter creates a rate limiter over log.
func NewRateLimiter(log EventLog, policy model.QuotaPolicy, categories model.CategorySet) *RateLimiter {
	return &RateLimiter{log: log, policy: policy, categories: categories}
}

// Policy returns the quota policy in force.
func (l *RateLimiter) Policy() model.QuotaPolicy {
	return l.policy
}

// RemainingQuota returns how many more units actor may buy in category at now.
func (l *RateLimiter) RemainingQuota(ctx context.Context, actor string, category model.Category, now time.Time) (int, error) {
	consumed, err := l.log.SumWindow(ctx, actor, category, l.policy.Cutoff(now))
	if err != nil {
		return 0, err
	}
	return l.policy.Remaining(consumed), nil
}

// CooldownRemaining returns the time until the earliest in-window purchase
// leaves the window, or 0 when there is none.
func (l *RateLimiter) CooldownRemaining(ctx context.Context, actor string, category model.Category, now time.Time) (time.Duration, error) {
	earliest, err := l.log.EarliestInWindow(ctx, actor, category, l.policy.Cutoff(now))
	if err != nil {
		return 0, err
	}
	return l.policy.Cooldown(earliest, now), nil
}

// QuotaSnapshot reports consumption, remaining quota and cooldown for every
// configured category.
func (l *RateLimiter) QuotaSnapshot(ctx context.Context, actor string, now time.Time) (model.QuotaSnapshot, error) {
	totals, err := l.log.WindowTotals(ctx, actor, l.policy.Cutoff(now))
	if err != nil {
		return model.QuotaSnapshot{}, err
	}

	snap := model.QuotaSnapshot{
		Actor:       actor,
		Ceiling:     l.policy.Ceiling,
		EvaluatedAt: now,
		Categories:  make([]model.QuotaUsage, 0, len(l.categories)),
	}
	for _, c := range l.categories {
		usage := model.QuotaUsage{
			Category:  c,
			Consumed:  totals[c],
			Remaining: l.policy.Remaining(totals[c]),
		}
		if usage.Consumed > 0 {
			if usage.Cooldown, err = l.CooldownRemaining(ctx, actor, c, now); err != nil {
				return model.QuotaSnapshot{}, err
			}
		}
		snap.Categories = append(snap.Categories, usage)
	}
	return snap, nil
}
