package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	l := New(Config{MinInterval: 100 * time.Millisecond, Burst: 1})
	ctx := context.Background()

	// Consume the initial token.
	start := time.Now()
	if err := l.Wait(ctx, "https://test.com/a"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	// The next request to the same host waits roughly one interval.
	start = time.Now()
	if err := l.Wait(ctx, "https://test.com/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	l := New(Config{MinInterval: time.Hour, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example.com"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://b.example.com"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("expected a fresh bucket for a new host, waited %v", time.Since(start))
	}
}

func TestLimiter_DisabledPacing(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "https://test.com"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("expected no pacing, took %v", time.Since(start))
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{MinInterval: time.Hour, Burst: 1})
	ctx := context.Background()
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(canceled, "https://test.com"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
