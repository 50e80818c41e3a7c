package middleware

import (
	"context"
	"log"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
)

// NewLimiterFromConfig picks the rate-limit backend. Redis is used when configured
// and reachable, in-memory counters otherwise; a non-positive limit disables
// limiting and returns a nil Limiter. The close func is never nil.
func NewLimiterFromConfig(ctx context.Context, serverCfg config.ServerConfig) (Limiter, func() error) {
	noop := func() error { return nil }

	if serverCfg.RateLimitMax <= 0 {
		log.Println("[ratelimit] disabled")
		return nil, noop
	}

	if serverCfg.RateLimitRedisURL != "" {
		client, err := config.NewRedisClient(ctx, serverCfg.RateLimitRedisURL)
		if err == nil {
			log.Printf("[ratelimit] redis: %d requests per %s", serverCfg.RateLimitMax, serverCfg.RateLimitWindow)
			return NewRedisLimiter(client, serverCfg.RateLimitMax, serverCfg.RateLimitWindow), client.Close
		}
		log.Printf("[ratelimit] redis unavailable, using in-memory counters: %v", err)
	}

	log.Printf("[ratelimit] in memory: %d requests per %s", serverCfg.RateLimitMax, serverCfg.RateLimitWindow)
	return NewMemoryLimiter(serverCfg.RateLimitMax, serverCfg.RateLimitWindow), noop
}
