package backoff

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := New(100*time.Millisecond, 500*time.Millisecond)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("step %d: want %s, got %s", i, w, got)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := New(100*time.Millisecond, time.Second)
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != 100*time.Millisecond {
		t.Fatalf("want initial delay after reset, got %s", got)
	}
}

func TestBackoff_SleepHonorsCancellation(t *testing.T) {
	b := New(10*time.Second, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if err := b.Sleep(ctx); err != context.Canceled {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep did not return promptly on cancel")
	}
}
