package domain

import "time"

// Domain contains core models shared by the probe, sinks, and storage.

// GenerationRequest is the JSON body posted to the generate endpoint.
type GenerationRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

// RunReport describes the outcome of a single probe run. It carries a bounded
// summary of the response, never the raw body.
type RunReport struct {
	RunID       string    `json:"run_id"`
	Target      string    `json:"target"`
	Method      string    `json:"method"`
	StatusCode  int       `json:"status_code"`
	Succeeded   bool      `json:"succeeded"`
	DurationMs  int64     `json:"duration_ms"`
	BodyBytes   int       `json:"body_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}
