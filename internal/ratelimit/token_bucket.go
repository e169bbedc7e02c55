package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Scope names a family of routes sharing one bucket per client.
type Scope string

const (
	// ScopeGenerate covers single and batch image generation. A batch spends one token per prompt.
	ScopeGenerate Scope = "generate"
	// ScopeMint covers the full generate, pin and mint pipeline.
	ScopeMint Scope = "mint"
)

// Bucket refills at RequestsPerMinute and holds at most BurstSize tokens.
type Bucket struct {
	RequestsPerMinute int
	BurstSize         int
}

func (b Bucket) Enabled() bool {
	return b.RequestsPerMinute > 0 && b.BurstSize > 0
}

// Policy maps each scope to its bucket. Scopes without an enabled bucket are not limited.
type Policy map[Scope]Bucket

type Decision struct {
	Allowed bool
	// Remaining is the whole number of tokens left after this request.
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	// Limited reports whether requests in scope are checked at all.
	Limited(scope Scope) bool
	// Allow spends cost tokens from client's bucket in scope.
	Allow(ctx context.Context, scope Scope, client string, cost int) (Decision, error)
}

// TokenBucketLimiter keeps one Redis hash per (scope, client) under BucketKey.
type TokenBucketLimiter struct {
	rdb    *redis.Client
	policy Policy
	now    func() time.Time
}

type Option func(*TokenBucketLimiter)

func WithClock(now func() time.Time) Option {
	return func(l *TokenBucketLimiter) { l.now = now }
}

// NewTokenBucketLimiter returns a limiter backed by rdb. A nil client yields a limiter that allows everything.
func NewTokenBucketLimiter(rdb *redis.Client, policy Policy, opts ...Option) *TokenBucketLimiter {
	l := &TokenBucketLimiter{rdb: rdb, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BucketKey is nftminter:rl:<scope>:<sha256(client)>. Clients are IPs or bearer tokens and are
// never stored in clear.
func BucketKey(scope Scope, client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	sum := sha256.Sum256([]byte(client))
	return "nftminter:rl:" + string(scope) + ":" + hex.EncodeToString(sum[:])
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1]) -- tokens/sec
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3]) -- ms
local ttl_ms = tonumber(ARGV[4])
local cost = tonumber(ARGV[5])

local tokens = tonumber(redis.call("HGET", key, "tokens"))
local ts = tonumber(redis.call("HGET", key, "ts"))
if not tokens then tokens = capacity end
if not ts or now < ts then ts = now end

tokens = math.min(capacity, tokens + (now - ts) * (rate / 1000.0))

local allowed = 0
local retry_after_s = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  retry_after_s = math.max(1, math.ceil((cost - tokens) / rate))
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, ttl_ms)
return {allowed, retry_after_s, math.floor(tokens)}
`)

func (l *TokenBucketLimiter) Limited(scope Scope) bool {
	return l != nil && l.rdb != nil && l.policy[scope].Enabled()
}

func (l *TokenBucketLimiter) Allow(ctx context.Context, scope Scope, client string, cost int) (Decision, error) {
	if !l.Limited(scope) {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	bucket := l.policy[scope]
	// a batch larger than the burst would otherwise never fit
	cost = min(max(cost, 1), bucket.BurstSize)

	ratePerSec := float64(bucket.RequestsPerMinute) / 60.0
	capacity := float64(bucket.BurstSize)
	res, err := tokenBucketScript.Run(ctx, l.rdb, []string{BucketKey(scope, client)},
		ratePerSec, capacity, l.now().UTC().UnixMilli(), computeTTLMS(ratePerSec, capacity), cost).Result()
	if err != nil {
		return Decision{}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return Decision{}, fmt.Errorf("unexpected redis ratelimit response: %T", res)
	}

	allowed, _ := vals[0].(int64)
	retryAfterS, _ := vals[1].(int64)
	remaining, _ := vals[2].(int64)
	if allowed == 1 {
		return Decision{Allowed: true, Remaining: int(remaining)}, nil
	}
	return Decision{Remaining: int(remaining), RetryAfter: time.Duration(max(retryAfterS, 1)) * time.Second}, nil
}

// computeTTLMS keeps bucket state for about two refill cycles, clamped to [30s, 1h].
func computeTTLMS(ratePerSec float64, capacity float64) int64 {
	const minTTL = 30 * time.Second
	const maxTTL = time.Hour

	if ratePerSec <= 0 || capacity <= 0 {
		return (2 * time.Minute).Milliseconds()
	}
	ttl := time.Duration(math.Ceil(capacity/ratePerSec*2.0))*time.Second + 5*time.Second
	return min(max(ttl, minTTL), maxTTL).Milliseconds()
}
