package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/agrishield/claims/internal/config"
)

const keySubmitFarmer = "claims:submit:farmer:%s"

// SubmitLimiter throttles claim submissions per farmer with a shared redis
// token bucket. Disabled (always allows) when no redis address is
// configured.
type SubmitLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewSubmitLimiter(cfg config.Config) (*SubmitLimiter, error) {
	limitCfg := cfg.RateLimit

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return &SubmitLimiter{}, nil
	}
	if limitCfg.SubmitRate <= 0 || limitCfg.SubmitBurst <= 0 {
		return nil, fmt.Errorf("submit rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &SubmitLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.SubmitRate,
		burst:   limitCfg.SubmitBurst,
	}, nil
}

func (l *SubmitLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowFarmer checks the farmer's bucket. Redis unavailability fails open:
// submissions are accepted rather than blocked on the limiter.
func (l *SubmitLimiter) AllowFarmer(ctx context.Context, farmerID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keySubmitFarmer, strings.TrimSpace(farmerID))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		return &Result{Allowed: true}, err
	}
	return res, nil
}
