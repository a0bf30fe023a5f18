package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/agendahub/payments-api/internal/pkg/env"
)

// Setup connects to the redis cache and returns the client for injection.
// The cache is best-effort: an unreachable server logs a warning and the
// service runs without the payment-status cache.
func Setup() *redis.Client {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	if pong, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("Warning: could not connect to cache at %s:%s: %v", host, port, err)
	} else {
		log.Printf("Connected to cache: %s", pong)
	}
	return client
}
