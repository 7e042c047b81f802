// Package ratelimit provides fixed-window request limiting keyed by
// endpoint bucket and caller identity. Two implementations exist: an
// in-process map for single-instance deployments and tests, and a redis
// variant for horizontally scaled ones.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bucket names. Each API surface with a distinct abuse profile gets its own
// window.
const (
	BucketAIGeneration = "ai_generation"
	BucketAIGrading    = "ai_grading"
	BucketAPI          = "api"
	BucketAuth         = "auth"
	BucketFileUpload   = "file_upload"
)

type Config struct {
	Limit  int
	Window time.Duration
}

// Buckets holds the per-endpoint limits. AI generation is the most expensive
// call in the system and gets the tightest window after file uploads.
var Buckets = map[string]Config{
	BucketAIGeneration: {Limit: 5, Window: time.Minute},
	BucketAIGrading:    {Limit: 20, Window: time.Minute},
	BucketAPI:          {Limit: 60, Window: time.Minute},
	BucketAuth:         {Limit: 30, Window: 5 * time.Minute},
	BucketFileUpload:   {Limit: 2, Window: time.Minute},
}

// Result reports the outcome of a single check. RetryAfter is whole seconds,
// set only when the request was blocked.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

type Limiter interface {
	Check(ctx context.Context, bucket, identifier string) (Result, error)
}

const sweepInterval = time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter counts requests in a mutex-guarded map. Expired windows are
// swept lazily during Check, at most once per sweepInterval.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]window
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Check(ctx context.Context, bucket, identifier string) (Result, error) {
	cfg, ok := Buckets[bucket]
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unknown bucket %q", bucket)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		for k, w := range m.windows {
			if !now.Before(w.resetAt) {
				delete(m.windows, k)
			}
		}
		m.lastSweep = now
	}

	key := bucket + ":" + identifier
	w, exists := m.windows[key]
	if !exists || !now.Before(w.resetAt) {
		w = window{count: 1, resetAt: now.Add(cfg.Window)}
		m.windows[key] = w
		return Result{Allowed: true, Remaining: cfg.Limit - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= cfg.Limit {
		retry := int(w.resetAt.Sub(now).Seconds())
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt, RetryAfter: retry}, nil
	}

	w.count++
	m.windows[key] = w
	return Result{Allowed: true, Remaining: cfg.Limit - w.count, ResetAt: w.resetAt}, nil
}
