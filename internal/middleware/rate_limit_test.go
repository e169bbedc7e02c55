package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/nftminter/internal/ratelimit"
)

type mockLimiter struct {
	limited  map[ratelimit.Scope]bool
	decision ratelimit.Decision
	err      error

	calls  int
	scope  ratelimit.Scope
	client string
	cost   int
}

func (m *mockLimiter) Limited(scope ratelimit.Scope) bool { return m.limited[scope] }

func (m *mockLimiter) Allow(ctx context.Context, scope ratelimit.Scope, client string, cost int) (ratelimit.Decision, error) {
	m.calls++
	m.scope, m.client, m.cost = scope, client, cost
	return m.decision, m.err
}

func limiting(dec ratelimit.Decision) *mockLimiter {
	return &mockLimiter{
		limited:  map[ratelimit.Scope]bool{ratelimit.ScopeGenerate: true, ratelimit.ScopeMint: true},
		decision: dec,
	}
}

func newLimitedContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	ctx.Request.RemoteAddr = "203.0.113.7:4321"
	return ctx, rec
}

func TestRateLimitGenerate_UnlimitedScope(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false}}
	ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/generate-nft", "")

	RateLimitGenerate(limiter, "generate_nft", SingleCost)(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through for an unlimited scope")
	}
	if limiter.calls != 0 {
		t.Fatal("limiter must not be consulted for an unlimited scope")
	}
}

func TestRateLimitGenerate_AllowedDecision(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: true, Remaining: 9})
	ctx, rec := newLimitedContext(http.MethodPost, "/api/v1/generate-nft", "")

	RateLimitGenerate(limiter, "generate_nft", SingleCost)(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through when rate limit allows")
	}
	if limiter.scope != ratelimit.ScopeGenerate || limiter.client != "ip:203.0.113.7" || limiter.cost != 1 {
		t.Fatalf("expected ip keyed generate bucket at cost 1, got %s/%s/%d", limiter.scope, limiter.client, limiter.cost)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "9" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
}

func TestRateLimitGenerate_BatchCostsOnePerPrompt(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: true, Remaining: 0})
	body := `{"prompts":["a red cube","a blue sphere","a green cone"]}`
	ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/generate-batch", body)

	RateLimitGenerate(limiter, "generate_batch", BatchCost)(ctx)

	if limiter.cost != 3 {
		t.Fatalf("expected cost 3, got %d", limiter.cost)
	}
	rest, err := io.ReadAll(ctx.Request.Body)
	if err != nil || string(rest) != body {
		t.Fatalf("body must be readable by the controller, got %q, %v", rest, err)
	}
}

func TestBatchCostFallsBackToOne(t *testing.T) {
	for _, body := range []string{"", "not json", `{"prompts":[]}`} {
		ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/generate-batch", body)
		if got := BatchCost(ctx); got != 1 {
			t.Errorf("BatchCost(%q) = %d, want 1", body, got)
		}
	}
}

func TestRateLimitMint_KeyedByBearerToken(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: true})
	ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/mint-nft", "")
	ctx.Request.Header.Set("Authorization", "Bearer mint-secret")

	RateLimitMint(limiter)(ctx)

	if limiter.scope != ratelimit.ScopeMint || limiter.client != "token:mint-secret" {
		t.Fatalf("expected token keyed mint bucket, got %s/%s", limiter.scope, limiter.client)
	}

	ctx, _ = newLimitedContext(http.MethodPost, "/api/v1/mint-nft", "")
	RateLimitMint(limiter)(ctx)
	if limiter.client != "ip:203.0.113.7" {
		t.Fatalf("anonymous mints fall back to the client ip, got %s", limiter.client)
	}
}

func TestRateLimitMint_DeniedDecision(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: false, Remaining: 0, RetryAfter: 5 * time.Second})
	ctx, rec := newLimitedContext(http.MethodPost, "/api/v1/mint-nft", "")

	RateLimitMint(limiter)(ctx)

	if !ctx.IsAborted() {
		t.Fatal("expected request to be aborted when rate limited")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status, got %d", rec.Code)
	}
	if retryAfter := rec.Header().Get("Retry-After"); retryAfter != "5" {
		t.Fatalf("expected Retry-After: 5, got %s", retryAfter)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal JSON response: %v", err)
	}
	if body["detail"] != "rate limit exceeded" {
		t.Fatalf("expected detail field, got %v", body)
	}
	if body["scope"] != "mint" || body["operation"] != "mint_nft" {
		t.Fatalf("unexpected scope/operation %v/%v", body["scope"], body["operation"])
	}
	if body["retryAfterSeconds"] != float64(5) {
		t.Fatalf("expected retryAfterSeconds=5, got %v", body["retryAfterSeconds"])
	}
}

func TestRateLimitMint_RedisErrorFailsOpen(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: false})
	limiter.err = context.DeadlineExceeded
	ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/mint-nft", "")

	RateLimitMint(limiter)(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through when limiter returns error (fail open)")
	}
}

func TestRateLimitGenerate_NilLimiter(t *testing.T) {
	ctx, _ := newLimitedContext(http.MethodPost, "/api/v1/generate-batch", "")

	RateLimitGenerate(nil, "generate_batch", BatchCost)(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through with nil limiter")
	}
}

func TestRateLimitGenerate_RetryAfterRoundsUp(t *testing.T) {
	limiter := limiting(ratelimit.Decision{Allowed: false, RetryAfter: 500 * time.Millisecond})
	ctx, rec := newLimitedContext(http.MethodPost, "/api/v1/generate-nft", "")

	RateLimitGenerate(limiter, "generate_nft", SingleCost)(ctx)

	if retryAfter := rec.Header().Get("Retry-After"); retryAfter != "1" {
		t.Fatalf("expected Retry-After: 1 (minimum), got %s", retryAfter)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "valid bearer token",
			header: "Bearer abc123",
			want:   "abc123",
		},
		{
			name:   "valid with extra spaces",
			header: "  Bearer   def456  ",
			want:   "def456",
		},
		{
			name:   "case insensitive bearer",
			header: "bearer xyz789",
			want:   "xyz789",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
		{
			name:   "missing token",
			header: "Bearer",
			want:   "",
		},
		{
			name:   "wrong scheme",
			header: "Basic abc123",
			want:   "",
		},
		{
			name:   "no scheme",
			header: "justtoken",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bearerToken(tt.header)
			if got != tt.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
