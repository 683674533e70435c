package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/draftsmith-hq/genprobe/internal/config"
	"github.com/draftsmith-hq/genprobe/internal/logger"
	"github.com/draftsmith-hq/genprobe/internal/probe"
	"github.com/draftsmith-hq/genprobe/internal/storage"
	"github.com/draftsmith-hq/genprobe/pkg/httpclient"
	"github.com/draftsmith-hq/genprobe/pkg/sinks"
)

// Probe represents the one-shot probe runtime. It wires the HTTP client,
// sinks, and history store, runs a single generation request, and writes the
// verbatim response to stdout. Logs go to stderr so stdout carries nothing
// but the response.
type Probe struct {
	cfg     *config.Config
	fanout  *sinks.Fanout
	service *probe.Service
	log     logger.Logger
	store   storage.Store
	out     io.Writer
}

// NewProbe builds a probe runtime from config.
func NewProbe(ctx context.Context, cfg *config.Config, log logger.Logger) (*Probe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := httpclient.NewRestyClient(cfg.RequestTimeout)

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	service := probe.NewService(client, cfg.TargetBaseURL(), fanout, log, store)

	return &Probe{
		cfg:     cfg,
		fanout:  fanout,
		service: service,
		log:     log,
		store:   store,
		out:     os.Stdout,
	}, nil
}

// Run executes a single probe and prints the response body.
func (p *Probe) Run(ctx context.Context) error {
	if p == nil || p.service == nil {
		return fmt.Errorf("probe is not initialized")
	}
	defer p.closeStore()

	result, err := p.service.Execute(ctx)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(p.out, "%s\n", result.Body); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// buildFanout loads the sinks file when configured. Without one the probe
// runs with an empty fanout.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*sinks.Fanout, error) {
	if cfg.SinksFile == "" {
		return sinks.NewFanout(nil), nil
	}

	sinkReg, err := sinks.LoadRegistry(cfg.SinksFile)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}

	enabled := sinkReg.Enabled()
	if len(enabled) == 0 {
		log.WarnObj("sinks file has no enabled sinks", "sinks_file", cfg.SinksFile)
		return sinks.NewFanout(nil), nil
	}

	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	sinkSummaries := make([]map[string]string, 0, len(enabled))
	for _, sinkCfg := range enabled {
		sinkSummaries = append(sinkSummaries, map[string]string{
			"id":   sinkCfg.ID,
			"type": sinkCfg.Type,
		})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(sinkSummaries),
		"sinks": sinkSummaries,
	})

	return sinks.NewFanout(built), nil
}

// openStore initializes the history backend from config.
func openStore(cfg *config.Config, log logger.Logger) (storage.Store, error) {
	storeOpts := storage.Options{
		RunTTL:          cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
		MaxRuns:         cfg.HistoryMaxRuns,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
	}
	store, err := storage.NewStore(cfg.HistoryStore, cfg.HistoryPath, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("init history storage: %w", err)
	}
	log.InfoObj("history storage initialized", "storage_config", map[string]any{
		"type":                     cfg.HistoryStore,
		"path":                     cfg.HistoryPath,
		"run_ttl_seconds":          int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanupInterval.Seconds()),
		"max_runs":                 cfg.HistoryMaxRuns,
	})
	return store, nil
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (p *Probe) closeStore() {
	if p == nil || p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.ErrorObj("storage close failed", "error", err)
	}
}
