// Package cache holds rewritten search queries keyed by conversation history.
package cache

import (
	"container/list"
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/circuitbreaker"
)

// QueryCache defines cache operations for rewritten queries.
type QueryCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, query string, ttl time.Duration)
}

// LocalLRU is a simple in-process LRU with TTL
type LocalLRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List               // front = most recent
	m    map[string]*list.Element // key -> element
}

type lruEntry struct {
	key   string
	query string
	exp   time.Time
}

func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LocalLRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity)}
}

func (l *LocalLRU) Get(_ context.Context, key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.After(time.Now()) {
			l.list.MoveToFront(el)
			return ent.query, true
		}
		// expired: remove
		l.list.Remove(el)
		delete(l.m, key)
	}
	return "", false
}

func (l *LocalLRU) Set(_ context.Context, key string, query string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		el.Value = lruEntry{key: key, query: query, exp: time.Now().Add(ttl)}
		l.list.MoveToFront(el)
		return
	}
	el := l.list.PushFront(lruEntry{key: key, query: query, exp: time.Now().Add(ttl)})
	l.m[key] = el
	if l.list.Len() > l.cap {
		oldest := l.list.Back()
		if oldest != nil {
			ent := oldest.Value.(lruEntry)
			delete(l.m, ent.key)
			l.list.Remove(oldest)
		}
	}
}

// RedisCache uses circuit-breaker wrapped Redis
type RedisCache struct {
	cli *circuitbreaker.RedisWrapper
}

func NewRedisCache(addr string, logger *zap.Logger) (*RedisCache, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr})
	wrapper := circuitbreaker.NewRedisWrapper(rc, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wrapper.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{cli: wrapper}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.cli.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, key string, query string, ttl time.Duration) {
	_ = r.cli.Set(ctx, key, query, ttl).Err()
}

func (r *RedisCache) Close() error { return r.cli.Close() }

// Wrapper exposes the breaker-wrapped client for health checks.
func (r *RedisCache) Wrapper() *circuitbreaker.RedisWrapper { return r.cli }

// MakeKey digests the model and conversation text into a stable cache key.
func MakeKey(model, text string) string {
	h := md5.Sum([]byte(model + "|" + text))
	return "rw:" + hex.EncodeToString(h[:])
}

// Tiered reads through the local LRU before Redis and backfills on hit.
type Tiered struct {
	lru   *LocalLRU
	redis QueryCache
}

func NewTiered(lru *LocalLRU, redis QueryCache) *Tiered {
	return &Tiered{lru: lru, redis: redis}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := t.lru.Get(ctx, key); ok {
		return v, true
	}
	if t.redis != nil {
		if v, ok := t.redis.Get(ctx, key); ok {
			t.lru.Set(ctx, key, v, 30*time.Minute)
			return v, true
		}
	}
	return "", false
}

func (t *Tiered) Set(ctx context.Context, key string, query string, ttl time.Duration) {
	t.lru.Set(ctx, key, query, ttl)
	if t.redis != nil {
		t.redis.Set(ctx, key, query, ttl)
	}
}
