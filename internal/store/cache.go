package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/constants"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var redisTracer = otel.Tracer("ai-agent-go/store/cache")

// ErrNotFound mirrors redis.Nil so callers outside this package don't need
// to import go-redis just to check a cache miss.
var ErrNotFound = redis.Nil

// SearchCache wraps a Redis client as a short-TTL cache of the Retrieval
// Pipeline's final (re-ranked, truncated) search results, for any search
// type, plus a distributed dedup lock — not conversation
// persistence, which never touches Redis (spec's explicit Non-goal on
// durable conversation state).
type SearchCache struct {
	client *redis.Client
}

// NewSearchCache connects to Redis and registers OpenTelemetry
// instrumentation on the client.
func NewSearchCache(cfg *config.RedisConfig) (*SearchCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("instrument redis with otel: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Address, err)
	}

	return &SearchCache{client: client}, nil
}

// Close releases the Redis connection pool.
func (c *SearchCache) Close() error {
	return c.client.Close()
}

// signatureKey builds the cache/lock key for a (query, searchType, k)
// signature, namespaced under prefix.
func signatureKey(prefix, query string, searchType types.SearchType, k int) string {
	return fmt.Sprintf("%s%s:%s:%d", prefix, searchType, query, k)
}

// GetResults returns previously cached pipeline results for the given
// search signature, or ErrNotFound on a miss.
func (c *SearchCache) GetResults(ctx context.Context, query string, searchType types.SearchType, k int) ([]types.SearchResultItem, error) {
	key := signatureKey(constants.SearchCachePrefix, query, searchType, k)
	ctx, span := redisTracer.Start(ctx, "SearchCache.GetResults", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "GET"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		}
		return nil, err
	}
	var items []types.SearchResultItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		err = fmt.Errorf("unmarshal cached search results: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, err
	}
	return items, nil
}

// SetResults caches pipeline results under the search signature for
// constants.SearchCacheDuration.
func (c *SearchCache) SetResults(ctx context.Context, query string, searchType types.SearchType, k int, items []types.SearchResultItem) error {
	key := signatureKey(constants.SearchCachePrefix, query, searchType, k)
	ctx, span := redisTracer.Start(ctx, "SearchCache.SetResults", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)

	data, err := json.Marshal(items)
	if err != nil {
		err = fmt.Errorf("marshal search results: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return err
	}
	if err := c.client.Set(ctx, key, data, constants.SearchCacheDuration).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return err
	}
	return nil
}

// AcquireLock attempts to take the distributed dedup lock for a search
// signature, collapsing concurrent identical in-flight searches into one
// D/E/F/G run. Returns the opaque lock value on success, or "" if another
// caller already holds it.
func (c *SearchCache) AcquireLock(ctx context.Context, query string, searchType types.SearchType, k int) (string, error) {
	key := signatureKey(constants.SearchLockPrefix, query, searchType, k)
	ctx, span := redisTracer.Start(ctx, "SearchCache.AcquireLock", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SETNX"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)

	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := c.client.SetNX(ctx, key, lockValue, constants.SearchLockTTL).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", err
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return "", nil
	}
	return lockValue, nil
}

// ReleaseLock releases a lock previously returned by AcquireLock, using a
// Lua script so the compare-and-delete is atomic: a caller only ever
// releases a lock it still holds.
func (c *SearchCache) ReleaseLock(ctx context.Context, query string, searchType types.SearchType, k int, lockValue string) (bool, error) {
	key := signatureKey(constants.SearchLockPrefix, query, searchType, k)
	ctx, span := redisTracer.Start(ctx, "SearchCache.ReleaseLock", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	res, err := c.client.Eval(ctx, script, []string{key}, lockValue).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, err
	}
	released, ok := res.(int64)
	span.SetAttributes(attribute.Bool("lock.released", ok && released == 1))
	return ok && released == 1, nil
}
