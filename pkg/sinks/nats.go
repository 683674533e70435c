package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn defines the minimal subset of the NATS connection used by natsSink.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// natsSink implements the Sink interface for NATS core subjects. The
// connection is dialed on first delivery so that configuring the sink does
// not require a reachable server.
type natsSink struct {
	id      string
	typ     string
	url     string
	subject string
	log     Logger

	mu      sync.Mutex
	conn    natsConn
	connect func(url string) (natsConn, error)
}

// newNATSSink creates a NATS sink with the given configuration.
func newNATSSink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.NATS == nil {
		return nil, fmt.Errorf("sink %q missing nats configuration", cfg.ID)
	}

	url := cfg.NATS.URL
	if url == "" {
		url = nats.DefaultURL
	}

	return &natsSink{
		id:      cfg.ID,
		typ:     TypeNATS,
		url:     url,
		subject: cfg.NATS.Subject,
		log:     ensureLogger(log),
		connect: dialNATS,
	}, nil
}

func dialNATS(url string) (natsConn, error) {
	return nats.Connect(url,
		nats.Name("genprobe-sink"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

func (n *natsSink) ID() string   { return n.id }
func (n *natsSink) Type() string { return n.typ }

// Deliver publishes the event to the configured subject and flushes the
// connection so nothing stays in the client buffer.
func (n *natsSink) Deliver(ctx context.Context, evt Event) error {
	conn, err := n.connection()
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := conn.Publish(n.subject, payload); err != nil {
		n.log.ErrorObj("nats sink publish failed", "sink_nats_error", map[string]any{
			"sink_id": n.id,
			"error":   err.Error(),
		})
		return fmt.Errorf("publish to nats: %w", err)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	n.log.DebugObj("nats sink delivered event", "sink_nats_delivery", map[string]any{
		"sink_id": n.id,
	})
	return nil
}

func (n *natsSink) connection() (natsConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return n.conn, nil
	}
	conn, err := n.connect(n.url)
	if err != nil {
		return nil, err
	}
	n.conn = conn
	return conn, nil
}
