package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileSink implements the Sink interface for a local JSON-lines file. Each
// delivered event is appended as a single line.
type fileSink struct {
	id   string
	typ  string
	path string
	log  Logger

	mu sync.Mutex
}

// newFileSink creates a file sink, ensuring the parent directory exists.
func newFileSink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.File == nil {
		return nil, fmt.Errorf("sink %q missing file configuration", cfg.ID)
	}

	if dir := filepath.Dir(cfg.File.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sink directory: %w", err)
		}
	}

	return &fileSink{
		id:   cfg.ID,
		typ:  TypeFile,
		path: cfg.File.Path,
		log:  ensureLogger(log),
	}, nil
}

func (f *fileSink) ID() string   { return f.id }
func (f *fileSink) Type() string { return f.typ }

// Deliver appends the event as one JSON line.
func (f *fileSink) Deliver(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	payload = append(payload, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sink file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(payload); err != nil {
		f.log.ErrorObj("file sink write failed", "sink_file_error", map[string]any{
			"sink_id": f.id,
			"error":   err.Error(),
		})
		return fmt.Errorf("append event: %w", err)
	}
	f.log.DebugObj("file sink delivered event", "sink_file_delivery", map[string]any{
		"sink_id": f.id,
	})
	return nil
}
