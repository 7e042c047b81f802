package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAllowsUpToLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < Buckets[BucketAIGeneration].Limit; i++ {
		res, err := m.Check(ctx, BucketAIGeneration, "user-1")
		if err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d blocked, want allowed", i+1)
		}
		if want := Buckets[BucketAIGeneration].Limit - (i + 1); res.Remaining != want {
			t.Fatalf("call %d remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := m.Check(ctx, BucketAIGeneration, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("6th call within the window was allowed")
	}
	if res.RetryAfter < 1 {
		t.Fatalf("retryAfter = %d, want >= 1", res.RetryAfter)
	}
}

func TestMemoryIsolatesIdentifiers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := m.Check(ctx, BucketFileUpload, "user-a"); !res.Allowed {
			t.Fatalf("user-a call %d blocked", i+1)
		}
	}
	if res, _ := m.Check(ctx, BucketFileUpload, "user-a"); res.Allowed {
		t.Fatal("user-a over limit but allowed")
	}
	if res, _ := m.Check(ctx, BucketFileUpload, "user-b"); !res.Allowed {
		t.Fatal("user-b blocked by user-a's window")
	}
}

func TestMemoryWindowResets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < Buckets[BucketFileUpload].Limit; i++ {
		m.Check(ctx, BucketFileUpload, "user-1")
	}
	if res, _ := m.Check(ctx, BucketFileUpload, "user-1"); res.Allowed {
		t.Fatal("expected block at limit")
	}

	now = now.Add(61 * time.Second)
	res, err := m.Check(ctx, BucketFileUpload, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("window did not reset after expiry")
	}
	if res.Remaining != Buckets[BucketFileUpload].Limit-1 {
		t.Fatalf("remaining = %d after reset, want %d", res.Remaining, Buckets[BucketFileUpload].Limit-1)
	}
}

func TestMemorySweepDropsExpiredWindows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.lastSweep = now

	for i := 0; i < 10; i++ {
		m.Check(ctx, BucketAPI, string(rune('a'+i)))
	}
	if len(m.windows) != 10 {
		t.Fatalf("window count = %d, want 10", len(m.windows))
	}

	now = now.Add(2 * time.Minute)
	m.Check(ctx, BucketAPI, "fresh")
	if len(m.windows) != 1 {
		t.Fatalf("window count after sweep = %d, want 1", len(m.windows))
	}
}

func TestMemoryUnknownBucket(t *testing.T) {
	m := NewMemory()
	if _, err := m.Check(context.Background(), "nope", "user"); err == nil {
		t.Fatal("expected error for unknown bucket")
	}
}
