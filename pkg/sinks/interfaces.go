package sinks

import "context"

// Sink delivers run events to a downstream destination (SQS, HTTP, etc).
type Sink interface {
	ID() string
	Type() string
	Deliver(ctx context.Context, evt Event) error
}
