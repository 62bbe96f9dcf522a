// Package cache keeps the previous bill and the latest view in Redis so a
// restarted pipeline has both before the store replays anything.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/LeonardoBeccarini/sems_project/internal/metrics"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(ctx context.Context, o Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis ping failed", "addr", o.Addr, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := o.KeyPrefix
	if prefix == "" {
		prefix = "sems"
	}
	return &RedisCache{client: client, ttl: o.TTL, prefix: prefix}, nil
}

func (r *RedisCache) key(name string) string { return r.prefix + ":" + name }

// StorePreviousBill keeps a known bill. An unavailable bill is not stored:
// it would shadow the last real one.
func (r *RedisCache) StorePreviousBill(ctx context.Context, a entities.Amount) error {
	v, ok := a.Get()
	if !ok {
		return nil
	}
	err := r.client.Set(ctx, r.key("prev_month"), encodeBill(v), r.ttl).Err()
	observe("set_prev_month", err)
	return err
}

// PreviousBill returns Unavailable (and no error) when nothing is cached.
func (r *RedisCache) PreviousBill(ctx context.Context) (entities.Amount, error) {
	s, err := r.client.Get(ctx, r.key("prev_month")).Result()
	if errors.Is(err, redis.Nil) {
		observe("get_prev_month", nil)
		return entities.Unavailable, nil
	}
	observe("get_prev_month", err)
	if err != nil {
		return entities.Unavailable, err
	}
	return decodeBill(s), nil
}

func (r *RedisCache) StoreView(ctx context.Context, v pipeline.DerivedView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	err = r.client.Set(ctx, r.key("view:latest"), b, r.ttl).Err()
	observe("set_view", err)
	return err
}

// LatestView returns the last cached view and whether there was one.
func (r *RedisCache) LatestView(ctx context.Context) (pipeline.DerivedView, bool, error) {
	b, err := r.client.Get(ctx, r.key("view:latest")).Bytes()
	if errors.Is(err, redis.Nil) {
		return pipeline.DerivedView{}, false, nil
	}
	observe("get_view", err)
	if err != nil {
		return pipeline.DerivedView{}, false, err
	}
	var v pipeline.DerivedView
	if err := json.Unmarshal(b, &v); err != nil {
		return pipeline.DerivedView{}, false, fmt.Errorf("failed to unmarshal view: %w", err)
	}
	return v, true, nil
}

// Name and Consume make the cache a pipeline sink. Only live views are
// cached; an outage must not overwrite the last good one.
func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) Consume(ctx context.Context, v pipeline.DerivedView) error {
	if !v.Available() {
		return nil
	}
	return r.StoreView(ctx, v)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeBill(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func decodeBill(s string) entities.Amount {
	r := entities.ParseReading(s)
	if !r.OK() {
		return entities.Unavailable
	}
	return entities.Available(r.Value)
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RedisOperations.WithLabelValues(op, status).Inc()
}
