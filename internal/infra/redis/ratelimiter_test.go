package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type limiterCall struct {
	key     string
	advance time.Duration
	want    bool
}

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int64
		calls []limiterCall
	}{
		{
			name:  "window capacity then next window",
			limit: 2,
			calls: []limiterCall{
				{key: "drafting:openai", want: true},
				{key: "drafting:openai", want: true},
				{key: "drafting:openai", want: false},
				{key: "drafting:openai", advance: time.Second, want: true},
			},
		},
		{
			name:  "providers do not share a bucket",
			limit: 1,
			calls: []limiterCall{
				{key: "drafting:openai", want: true},
				{key: "drafting:anthropic", want: true},
				{key: "drafting:openai", want: false},
				{key: "drafting:http", want: true},
			},
		},
		{
			name:  "keys are case and space insensitive",
			limit: 1,
			calls: []limiterCall{
				{key: "Drafting:OpenAI", want: true},
				{key: " drafting:openai ", want: false},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			now := time.Unix(1_760_000_000, 0)
			limiter, err := newRedisRateLimiter(newTestRedisClient(t), tt.limit, func() time.Time { return now }, sleepWithContext)
			if err != nil {
				t.Fatalf("newRedisRateLimiter() error = %v", err)
			}

			for i, call := range tt.calls {
				now = now.Add(call.advance)
				allowed, err := limiter.Allow(context.Background(), call.key)
				if err != nil {
					t.Fatalf("call %d Allow(%q) error = %v", i, call.key, err)
				}
				if allowed != call.want {
					t.Fatalf("call %d Allow(%q) = %v, want %v", i, call.key, allowed, call.want)
				}
			}
		})
	}
}

func TestRedisRateLimiterWaitSleepsUntilNextWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_760_000_100, 0).Add(700 * time.Millisecond)
	var slept []time.Duration
	limiter, err := newRedisRateLimiter(newTestRedisClient(t), 1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), "drafting:http"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("first Wait() slept %v, want no sleep", slept)
	}

	if err := limiter.Wait(context.Background(), "drafting:http"); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != 300*time.Millisecond {
		t.Fatalf("slept = %v, want [300ms]", slept)
	}
}

func TestRedisRateLimiterWaitHonorsDeadline(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_760_000_200, 0)
	limiter, err := newRedisRateLimiter(newTestRedisClient(t), 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "drafting:openai"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "drafting:openai"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestNewRedisRateLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, 1); err == nil {
		t.Fatal("expected error for nil client")
	}

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), 0)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if limiter.limitPerSec != defaultLimitPerSec {
		t.Fatalf("limitPerSec = %d, want default %d", limiter.limitPerSec, defaultLimitPerSec)
	}
	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank key")
	}
}
