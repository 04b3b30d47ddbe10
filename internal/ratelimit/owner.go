package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/happyinline/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyOwnerBucket = "billing:owner:rate:%s"
	keyOwnerLock   = "billing:owner:lock:%s"
)

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrOwnerBusy   = errors.New("owner_operation_in_progress")
)

// OwnerLimiter throttles billing mutations per owner and serializes them with a
// short lock, so a double submitted checkout cannot create two subscriptions.
// A nil or disabled limiter allows everything.
type OwnerLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker
	log    *zap.Logger

	rate    float64
	burst   int
	lockTTL time.Duration
}

type Params struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

func NewOwnerLimiter(p Params) (*OwnerLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return newOwnerLimiter(client, limitCfg, p.Log)
}

func newOwnerLimiter(client *redis.Client, cfg config.RateLimitConfig, log *zap.Logger) (*OwnerLimiter, error) {
	if cfg.OwnerRate <= 0 || cfg.OwnerBurst <= 0 {
		return nil, errors.New("owner rate limit must be positive")
	}
	if cfg.OwnerLockTTLSec <= 0 {
		return nil, errors.New("owner lock ttl must be positive")
	}
	return &OwnerLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		log:     log.Named("ratelimit.owner"),
		rate:    cfg.OwnerRate,
		burst:   cfg.OwnerBurst,
		lockTTL: time.Duration(cfg.OwnerLockTTLSec) * time.Second,
	}, nil
}

func (l *OwnerLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow takes one token from the owner's bucket.
func (l *OwnerLimiter) Allow(ctx context.Context, ownerID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyOwnerBucket, strings.TrimSpace(ownerID)), l.rate, l.burst)
}

// Acquire locks the owner for one mutation. The returned release func is safe to
// call when the limiter is disabled. ErrOwnerBusy means another request holds it.
func (l *OwnerLimiter) Acquire(ctx context.Context, ownerID string) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}
	key := fmt.Sprintf(keyOwnerLock, strings.TrimSpace(ownerID))
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOwnerBusy
	}
	return func() {
		// The request context may be cancelled by now; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.locker.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("failed to release owner lock", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}, nil
}
