package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts passkey attempts per vault in fixed windows.
type Throttle struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewThrottle(client *redis.Client, limit int64, window time.Duration) *Throttle {
	return &Throttle{client: client, limit: limit, window: window}
}

func throttleKey(vaultID string) string {
	return fmt.Sprintf("passkey_attempts:%s", vaultID)
}

// Allow records one attempt and reports whether it is within the limit.
func (t *Throttle) Allow(ctx context.Context, vaultID string) (bool, error) {
	key := throttleKey(vaultID)

	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr failed: %w", err)
	}
	if n == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire failed: %w", err)
		}
	}
	return n <= t.limit, nil
}

// Reset clears the vault's counter after a successful verification.
func (t *Throttle) Reset(ctx context.Context, vaultID string) error {
	if err := t.client.Del(ctx, throttleKey(vaultID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
