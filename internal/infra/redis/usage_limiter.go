package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netpad/api/pkg/domain/shared"
)

// UsageLimiter tracks monthly execution usage per organization in Redis.
//
// The counter is incremented atomically against the plan ceiling in a
// single Lua script, so concurrent requests can never admit past the
// limit through a read-then-write race. Rejected attempts still count:
// the counter reflects attempts, not admissions, matching what the
// usage report shows customers.
type UsageLimiter struct {
	client *Client
}

// NewUsageLimiter creates a new UsageLimiter.
func NewUsageLimiter(client *Client) *UsageLimiter {
	return &UsageLimiter{client: client}
}

// incrWithCeiling increments the usage counter and reports whether the
// new value is within the limit. A negative limit means unlimited.
// Returns {allowed, current}.
var incrWithCeiling = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if limit < 0 or current <= limit then
	return {1, current}
end
return {0, current}
`)

// decrScript compensates a counted attempt whose execution was never
// admitted (for example when record creation failed after the increment).
// Never drops below zero.
var decrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// Increment atomically counts an execution attempt against the monthly
// quota. Returns the usage after the increment and whether the attempt
// is within the limit.
func (l *UsageLimiter) Increment(ctx context.Context, orgID shared.ID, limit int64) (current int64, allowed bool, err error) {
	key := usageKey(orgID, time.Now().UTC())

	// Keys expire two months out so the previous month stays readable
	// for reporting while stale counters still get cleaned up.
	const ttlSeconds = 62 * 24 * 60 * 60

	res, err := incrWithCeiling.Run(ctx, l.client.client, []string{key}, limit, ttlSeconds).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment usage: unexpected script result %v", res)
	}

	allowedInt, _ := res[0].(int64)
	current, _ = res[1].(int64)
	return current, allowedInt == 1, nil
}

// Decrement compensates an increment for an attempt that was counted but
// whose execution could not be admitted due to an internal failure.
func (l *UsageLimiter) Decrement(ctx context.Context, orgID shared.ID) error {
	key := usageKey(orgID, time.Now().UTC())
	if err := decrScript.Run(ctx, l.client.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}
	return nil
}

// Current returns the usage counter for the current month.
func (l *UsageLimiter) Current(ctx context.Context, orgID shared.ID) (int64, error) {
	key := usageKey(orgID, time.Now().UTC())
	current, err := l.client.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get usage: %w", err)
	}
	return current, nil
}

// usageKey builds the per-org monthly usage key, e.g.
// usage:executions:9f1c...:2026-08.
func usageKey(orgID shared.ID, now time.Time) string {
	return fmt.Sprintf("usage:executions:%s:%s", orgID.String(), now.Format("2006-01"))
}
