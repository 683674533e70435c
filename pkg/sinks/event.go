package sinks

import (
	"time"

	"github.com/draftsmith-hq/genprobe/internal/domain"
)

// Event represents the payload delivered downstream after a probe run.
type Event struct {
	RunID     string           `json:"run_id"`
	Target    string           `json:"target"`
	Report    domain.RunReport `json:"report"`
	EmittedAt time.Time        `json:"emitted_at"`
}

// NewEvent constructs an Event for the given run report.
func NewEvent(report domain.RunReport) Event {
	return Event{
		RunID:     report.RunID,
		Target:    report.Target,
		Report:    report,
		EmittedAt: time.Now().UTC(),
	}
}
