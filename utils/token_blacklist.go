package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "jwt:blacklist:"

// Blacklist remembers revoked tokens until they would have expired anyway.
// It prefers Redis and falls back to process memory when no client is set.
type Blacklist struct {
	rc  *redis.Client
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewBlacklist creates a blacklist; rc may be nil.
func NewBlacklist(rc *redis.Client, now func() time.Time) *Blacklist {
	if now == nil {
		now = time.Now
	}
	return &Blacklist{rc: rc, now: now, entries: map[string]time.Time{}}
}

// Revoke stores a token until expiresAt.
func (b *Blacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
	}
	b.mu.Lock()
	b.entries[token] = expiresAt
	b.mu.Unlock()
	return nil
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+token).Result()
		if err != nil {
			// fail open: a Redis outage must not lock every user out
			return false
		}
		return n > 0
	}

	b.mu.RLock()
	expiresAt, ok := b.entries[token]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if b.now().After(expiresAt) {
		b.mu.Lock()
		delete(b.entries, token)
		b.mu.Unlock()
		return false
	}
	return true
}
