package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/career-readiness/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-readiness/internal/config"
)

// Pinger is anything with a context-aware Ping: the pgx pool, the Tika client
// and the queue producer.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisPinger is the slice of a go-redis client readiness needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Dependencies are the probes available to /readyz. Nil members are reported
// as not configured when the configuration says they are required.
type Dependencies struct {
	DB    Pinger
	Redis RedisPinger
	Tika  Pinger
	Queue Pinger
}

// BuildReadinessChecks returns one check per dependency the configuration
// enables: db for the postgres store, redis when AI rate limiting is on, tika
// when a URL is set and the queue when brokers are set.
func BuildReadinessChecks(cfg config.Config, deps Dependencies) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck
	if cfg.StoreBackend != StoreMemory {
		checks = append(checks, pingCheck("db", deps.DB))
	}
	if cfg.RedisURL != "" && cfg.AIRateLimitPerMin > 0 {
		checks = append(checks, httpserver.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			if deps.Redis == nil {
				return fmt.Errorf("redis not configured")
			}
			return deps.Redis.Ping(ctx).Err()
		}})
	}
	if cfg.TikaURL != "" {
		checks = append(checks, pingCheck("tika", deps.Tika))
	}
	if len(cfg.KafkaBrokers) > 0 {
		checks = append(checks, pingCheck("queue", deps.Queue))
	}
	return checks
}

func pingCheck(name string, p Pinger) httpserver.ReadinessCheck {
	return httpserver.ReadinessCheck{Name: name, Check: func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s not configured", name)
		}
		return p.Ping(ctx)
	}}
}
