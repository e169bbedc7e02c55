package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/internal/ratelimit"
)

// CostFunc returns how many tokens a request spends.
type CostFunc func(c *gin.Context) int

// SingleCost charges one token per request.
func SingleCost(*gin.Context) int { return 1 }

// BatchCost charges one token per prompt of a generate-batch body and restores the body for the
// controller. Bodies that do not decode cost one token and are left for the controller to reject.
func BatchCost(c *gin.Context) int {
	if c.Request.Body == nil {
		return 1
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return 1
	}
	var body struct {
		Prompts []string `json:"prompts"`
	}
	if json.Unmarshal(raw, &body) != nil || len(body.Prompts) == 0 {
		return 1
	}
	return len(body.Prompts)
}

// RateLimitGenerate guards the image generation routes, keyed by client IP.
func RateLimitGenerate(lim ratelimit.Limiter, operation string, cost CostFunc) gin.HandlerFunc {
	return rateLimit(lim, ratelimit.ScopeGenerate, operation, cost, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// RateLimitMint guards the mint route, keyed by bearer token when one is sent and by client IP otherwise.
func RateLimitMint(lim ratelimit.Limiter) gin.HandlerFunc {
	return rateLimit(lim, ratelimit.ScopeMint, "mint_nft", SingleCost, func(c *gin.Context) string {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			return "token:" + token
		}
		return "ip:" + c.ClientIP()
	})
}

func rateLimit(lim ratelimit.Limiter, scope ratelimit.Scope, operation string, cost CostFunc, client func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim == nil || !lim.Limited(scope) {
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, client(c), cost(c))
		if err != nil {
			// fail open: a Redis outage must not take the API down
			LoggerFrom(c).Warn("rate limit check failed", "scope", scope, "op", operation, "err", err)
			c.Next()
			return
		}
		if dec.Remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := max(int(dec.RetryAfter.Seconds()), 1)
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues(string(scope), operation).Inc()
		LoggerFrom(c).Info("rate limited", "scope", scope, "op", operation)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail":            "rate limit exceeded",
			"scope":             scope,
			"operation":         operation,
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}

func bearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
