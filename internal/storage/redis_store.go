package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftsmith-hq/genprobe/internal/domain"
)

const runListKey = "genprobe:runs"

// redisStore implements a Store backed by a Redis list. Reports are pushed
// to the head so a range read returns newest first.
type redisStore struct {
	client  *redis.Client
	maxRuns int
	runTTL  time.Duration
}

// openRedis initializes a Redis-backed Store.
func openRedis(opts Options) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	store := &redisStore{
		client:  client,
		maxRuns: opts.MaxRuns,
		runTTL:  opts.RunTTL,
	}
	return store, nil
}

// Close closes the Redis client.
func (r *redisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// RecordRun pushes the report and trims the list to the run cap.
func (r *redisStore) RecordRun(ctx context.Context, report domain.RunReport) error {
	if r == nil || r.client == nil {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := r.client.LPush(ctx, runListKey, payload).Err(); err != nil {
		return fmt.Errorf("push report: %w", err)
	}
	if err := r.client.LTrim(ctx, runListKey, 0, int64(r.maxRuns-1)).Err(); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	// Idle histories fall out of Redis after the TTL.
	if err := r.client.Expire(ctx, runListKey, r.runTTL).Err(); err != nil {
		return fmt.Errorf("set history ttl: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit reports, newest first.
func (r *redisStore) RecentRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if r == nil || r.client == nil || limit <= 0 {
		return nil, nil
	}

	raw, err := r.client.LRange(ctx, runListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	reports := make([]domain.RunReport, 0, len(raw))
	for _, item := range raw {
		var report domain.RunReport
		if err := json.Unmarshal([]byte(item), &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
