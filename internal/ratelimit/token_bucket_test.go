package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

var testPolicy = Policy{
	ScopeGenerate: {RequestsPerMinute: 60, BurstSize: 10},
	ScopeMint:     {RequestsPerMinute: 60, BurstSize: 1},
}

func newTestLimiter(t *testing.T, policy Policy, opts ...Option) (*TokenBucketLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTokenBucketLimiter(rdb, policy, opts...), mr
}

func TestLimited(t *testing.T) {
	lim, _ := newTestLimiter(t, Policy{ScopeMint: {RequestsPerMinute: 10, BurstSize: 2}})
	if !lim.Limited(ScopeMint) {
		t.Error("mint has a bucket and should be limited")
	}
	if lim.Limited(ScopeGenerate) {
		t.Error("generate has no bucket and should not be limited")
	}
	if NewTokenBucketLimiter(nil, testPolicy).Limited(ScopeMint) {
		t.Error("a limiter without redis limits nothing")
	}
	var nilLimiter *TokenBucketLimiter
	if nilLimiter.Limited(ScopeMint) {
		t.Error("nil limiter limits nothing")
	}
}

func TestAllowUnlimitedScope(t *testing.T) {
	lim, mr := newTestLimiter(t, Policy{ScopeMint: {RequestsPerMinute: 1, BurstSize: 1}})
	for i := 0; i < 5; i++ {
		dec, err := lim.Allow(context.Background(), ScopeGenerate, "ip:10.0.0.1", 1)
		if err != nil || !dec.Allowed || dec.Remaining != -1 {
			t.Fatalf("generate without a bucket should always pass, got %+v, %v", dec, err)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("unlimited scope must not touch redis, keys=%v", keys)
	}
}

func TestMintBucketBlocksAfterBurst(t *testing.T) {
	lim, mr := newTestLimiter(t, testPolicy)
	ctx := context.Background()

	dec, err := lim.Allow(ctx, ScopeMint, "token:mint-secret", 1)
	if err != nil || !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("first mint should pass with nothing left, got %+v, %v", dec, err)
	}
	dec, err = lim.Allow(ctx, ScopeMint, "token:mint-secret", 1)
	if err != nil || dec.Allowed {
		t.Fatalf("second mint should be limited, got %+v, %v", dec, err)
	}
	if dec.RetryAfter != time.Second {
		t.Errorf("one token at 1/s should retry after 1s, got %s", dec.RetryAfter)
	}

	if dec, _ := lim.Allow(ctx, ScopeMint, "token:other", 1); !dec.Allowed {
		t.Error("another client has its own mint bucket")
	}
	if dec, _ := lim.Allow(ctx, ScopeGenerate, "token:mint-secret", 1); !dec.Allowed {
		t.Error("generate and mint buckets are independent")
	}

	want := map[string]bool{
		BucketKey(ScopeMint, "token:mint-secret"):     true,
		BucketKey(ScopeMint, "token:other"):           true,
		BucketKey(ScopeGenerate, "token:mint-secret"): true,
	}
	for _, k := range mr.Keys() {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
		if strings.Contains(k, "mint-secret") {
			t.Errorf("bearer token leaked into key %q", k)
		}
	}
}

func TestGenerateBatchSpendsOneTokenPerPrompt(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lim, _ := newTestLimiter(t, testPolicy, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	dec, _ := lim.Allow(ctx, ScopeGenerate, "ip:10.0.0.1", 7)
	if !dec.Allowed || dec.Remaining != 3 {
		t.Fatalf("batch of 7 from a burst of 10 should leave 3, got %+v", dec)
	}
	dec, _ = lim.Allow(ctx, ScopeGenerate, "ip:10.0.0.1", 5)
	if dec.Allowed {
		t.Fatal("batch of 5 with 3 tokens left should be limited")
	}
	if dec.RetryAfter != 2*time.Second || dec.Remaining != 3 {
		t.Errorf("expected 2s wait for the 2 missing tokens and 3 left, got %+v", dec)
	}

	clock = clock.Add(2 * time.Second)
	if dec, _ := lim.Allow(ctx, ScopeGenerate, "ip:10.0.0.1", 5); !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("expected the batch to fit after refill, got %+v", dec)
	}
}

func TestCostIsClampedToBurst(t *testing.T) {
	lim, _ := newTestLimiter(t, Policy{ScopeGenerate: {RequestsPerMinute: 60, BurstSize: 4}})
	dec, _ := lim.Allow(context.Background(), ScopeGenerate, "ip:10.0.0.1", 10)
	if !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("a batch larger than the burst should drain a full bucket, got %+v", dec)
	}
	dec, _ = lim.Allow(context.Background(), ScopeGenerate, "ip:10.0.0.2", 0)
	if !dec.Allowed || dec.Remaining != 3 {
		t.Fatalf("a zero cost is charged as one token, got %+v", dec)
	}
}

func TestBucketKey(t *testing.T) {
	k := BucketKey(ScopeGenerate, " ip:203.0.113.7 ")
	if !strings.HasPrefix(k, "nftminter:rl:generate:") || len(k) != len("nftminter:rl:generate:")+64 {
		t.Errorf("unexpected key layout %q", k)
	}
	if k != BucketKey(ScopeGenerate, "ip:203.0.113.7") {
		t.Error("client is trimmed before hashing")
	}
	if BucketKey(ScopeMint, "") != BucketKey(ScopeMint, "unknown") {
		t.Error("empty clients share the unknown bucket")
	}
}

func TestComputeTTLMS(t *testing.T) {
	if got := computeTTLMS(0, 0); got != (2 * time.Minute).Milliseconds() {
		t.Errorf("invalid inputs: got %d", got)
	}
	if got := computeTTLMS(100, 1); got != (30 * time.Second).Milliseconds() {
		t.Errorf("expected floor of 30s, got %d", got)
	}
	if got := computeTTLMS(1.0/3600, 100); got != time.Hour.Milliseconds() {
		t.Errorf("expected cap of 1h, got %d", got)
	}
}
