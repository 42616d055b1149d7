package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles abuse-prone operations with Redis counters.
// Sessions live in Postgres; Redis only holds these short-lived keys.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts = 5
	loginAttemptTTL  = 10 * time.Minute
	loginBanTTL      = 1 * time.Hour

	registerMaxAttemptsIP    = 10
	registerAttemptTTLIP     = 30 * time.Minute
	registerMaxAttemptsEmail = 3
	registerAttemptTTLEmail  = 30 * time.Minute

	// EmailCooldown spaces out outbound emails per address.
	EmailCooldown = 60 * time.Second
)

func loginAttemptKey(ip string) string {
	return "login_attempts:" + ip
}

func loginBanKey(ip string) string {
	return "login_ban:" + ip
}

func registerAttemptIPKey(ip string) string {
	if ip == "" {
		return ""
	}
	return "register_attempts_ip:" + ip
}

func registerAttemptEmailKey(email string) string {
	if email == "" {
		return ""
	}
	return "register_attempts_email:" + strings.ToLower(email)
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, loginBanKey(ip)).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, loginAttemptKey(ip))
}

// RegisterRegisterAttempt counts signup attempts per IP and per email
// and reports whether either bucket is exhausted, with the longest
// remaining TTL for user messaging.
func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	buckets := []struct {
		key string
		max int64
		ttl time.Duration
	}{
		{registerAttemptIPKey(ip), registerMaxAttemptsIP, registerAttemptTTLIP},
		{registerAttemptEmailKey(email), registerMaxAttemptsEmail, registerAttemptTTLEmail},
	}

	locked := false
	var ttlMax time.Duration

	for _, b := range buckets {
		if b.key == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, b.key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, b.key, b.ttl)
		}
		if attempts >= b.max {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, b.key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}

func (r *RateLimiter) CooldownTTL(ctx context.Context, key string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, key string, ttl time.Duration) {
	r.Redis.Set(ctx, key, "1", ttl)
}
