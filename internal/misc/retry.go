package misc

import (
	"context"
	"time"
)

// MaxBackoff caps a single reconnect delay.
const MaxBackoff = 60 * time.Second

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the timer-based SleepFunc used outside of tests.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExpBackoff returns min(limit, 2^attempt seconds) for a 0-indexed attempt.
func ExpBackoff(attempt int, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 31 {
		return limit
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > limit {
		return limit
	}
	return d
}

// Retry runs op up to attempts times. Every failed attempt n is followed by
// sleep(delay(n)). The last error is returned once the budget is spent.
func Retry(ctx context.Context, attempts int, delay func(attempt int) time.Duration, sleep SleepFunc, op func(attempt int) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(i); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if serr := sleep(ctx, delay(i)); serr != nil {
			return serr
		}
	}
	return err
}
