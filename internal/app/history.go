package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/draftsmith-hq/genprobe/internal/config"
	"github.com/draftsmith-hq/genprobe/internal/logger"
	"github.com/draftsmith-hq/genprobe/internal/storage"
)

// History lists recorded probe runs as JSON lines, newest first.
type History struct {
	cfg   *config.Config
	log   logger.Logger
	store storage.Store
	limit int
	out   io.Writer
}

// NewHistory builds a history listing runtime from config.
func NewHistory(cfg *config.Config, log logger.Logger) (*History, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	if cfg.HistoryStore == "" || cfg.HistoryStore == "none" {
		log.WarnObj("history storage disabled; nothing to list", "history_store", cfg.HistoryStore)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	return &History{
		cfg:   cfg,
		log:   log,
		store: store,
		limit: cfg.HistoryListLimit,
		out:   os.Stdout,
	}, nil
}

// Run prints recent runs and returns.
func (h *History) Run(ctx context.Context) error {
	if h == nil || h.store == nil {
		return fmt.Errorf("history is not initialized")
	}
	defer h.closeStore()

	runs, err := h.store.RecentRuns(ctx, h.limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	enc := json.NewEncoder(h.out)
	for _, run := range runs {
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode run %s: %w", run.RunID, err)
		}
	}

	h.log.InfoObj("history listed", "history_meta", map[string]any{
		"count": len(runs),
		"limit": h.limit,
	})
	return nil
}

func (h *History) closeStore() {
	if h == nil || h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		h.log.ErrorObj("storage close failed", "error", err)
	}
}
