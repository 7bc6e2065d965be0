package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginGuard throttles repeated failed logins per email and source IP using
// a Redis counter with a sliding expiry. A locked-out login surfaces as the
// same invalid-credentials failure.
type LoginGuard struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLoginGuard constructs a guard allowing limit failures per window.
func NewLoginGuard(client *redis.Client, limit int, window time.Duration) *LoginGuard {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &LoginGuard{client: client, limit: limit, window: window}
}

func (g *LoginGuard) key(email, ip string) string {
	return fmt.Sprintf("seer:login:fail:%s:%s", strings.ToLower(strings.TrimSpace(email)), ip)
}

// Blocked reports whether further attempts are currently rejected.
func (g *LoginGuard) Blocked(ctx context.Context, email, ip string) (bool, error) {
	count, err := g.client.Get(ctx, g.key(email, ip)).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		// Fail open on throttle errors; the caller only logs them.
		return false, err
	}
	return count >= g.limit, nil
}

// RecordFailure increments the failure counter and refreshes the window.
func (g *LoginGuard) RecordFailure(ctx context.Context, email, ip string) error {
	key := g.key(email, ip)
	pipe := g.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, g.window)
	_, err := pipe.Exec(ctx)
	return err
}

// Reset clears the failure counter after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, email, ip string) error {
	return g.client.Del(ctx, g.key(email, ip)).Err()
}
