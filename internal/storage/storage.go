package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/draftsmith-hq/genprobe/internal/domain"
)

// Package storage provides local run-history persistence.

// Store keeps a bounded history of probe runs.
type Store interface {
	Close() error
	RecordRun(ctx context.Context, report domain.RunReport) error
	RecentRuns(ctx context.Context, limit int) ([]domain.RunReport, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RunTTL          time.Duration
	CleanupInterval time.Duration
	MaxRuns         int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

const (
	defaultRunTTL          = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultMaxRuns         = 512
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	case "redis":
		if strings.TrimSpace(opts.RedisAddr) == "" {
			return nil, fmt.Errorf("redis storage requires an address")
		}
		return openRedis(opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RunTTL <= 0 {
		opts.RunTTL = defaultRunTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = defaultMaxRuns
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error { return nil }

func (noopStore) RecordRun(context.Context, domain.RunReport) error { return nil }

func (noopStore) RecentRuns(context.Context, int) ([]domain.RunReport, error) { return nil, nil }
