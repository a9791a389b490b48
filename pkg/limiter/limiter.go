// Package limiter decides whether a request is within its identity's
// quota and exposes the decision as response metadata.
package limiter

import (
	"context"
	"fmt"

	"tagdown/pkg/quota"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Used      int64
	Remaining int64
}

// Limiter applies the limit policy against a quota store.
type Limiter struct {
	store  quota.Store
	policy quota.Policy
}

// New creates a limiter over the given store and policy.
func New(store quota.Store, policy quota.Policy) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("quota store is required")
	}
	if policy.AuthenticatedLimit <= 0 || policy.AnonymousLimit <= 0 || policy.Window <= 0 {
		return nil, fmt.Errorf("limit policy must have positive values")
	}
	return &Limiter{store: store, policy: policy}, nil
}

// Allow increments the identity's counter and decides. A store failure
// is returned as an error so the caller can fail closed; quota must
// never silently become unlimited when the backend is down.
func (l *Limiter) Allow(ctx context.Context, id Identity) (Decision, error) {
	limit := l.policy.LimitFor(id.Authenticated)

	record, err := l.store.Increment(ctx, id.Key)
	if err != nil {
		return Decision{}, fmt.Errorf("quota increment: %w", err)
	}

	if record.Count > limit {
		// The increment pushed the identity over its ceiling
		return Decision{Allowed: false, Limit: limit, Used: limit, Remaining: 0}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Used:      record.Count,
		Remaining: remaining(limit, record.Count),
	}, nil
}

// Status reads the identity's current usage without incrementing, so a
// client can display quota state without spending a request.
func (l *Limiter) Status(ctx context.Context, id Identity) (Decision, error) {
	limit := l.policy.LimitFor(id.Authenticated)

	record, _, err := l.store.Get(ctx, id.Key)
	if err != nil {
		return Decision{}, fmt.Errorf("quota read: %w", err)
	}

	used := record.Count
	if used > limit {
		used = limit
	}

	return Decision{
		Allowed:   record.Count < limit,
		Limit:     limit,
		Used:      used,
		Remaining: remaining(limit, record.Count),
	}, nil
}

func remaining(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}
