package providers

import (
	"strings"

	"github.com/go-redis/redis/v8"
)

// NewRedisProvider returns nil when addr is empty; rate limiting and the shared nonce lock are
// then disabled.
func NewRedisProvider(addr, password string) *redis.Client {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}
