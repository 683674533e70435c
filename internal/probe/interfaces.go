package probe

import (
	"context"

	"github.com/draftsmith-hq/genprobe/internal/domain"
	"github.com/draftsmith-hq/genprobe/pkg/sinks"
)

// ReportPublisher fans finished run reports out to configured sinks.
type ReportPublisher interface {
	Deliver(ctx context.Context, evt sinks.Event) (int, error)
	Size() int
}

// RunRecorder persists finished runs for later listing.
type RunRecorder interface {
	RecordRun(ctx context.Context, report domain.RunReport) error
}
