package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/draftsmith-hq/genprobe/internal/domain"
	"github.com/draftsmith-hq/genprobe/internal/logger"
	"github.com/draftsmith-hq/genprobe/pkg/httpclient"
	"github.com/draftsmith-hq/genprobe/pkg/sinks"
)

// The generation endpoint and its payload are fixed. Changing either would
// change what a run measures, so they are constants rather than config.
const (
	generatePath    = "/generate"
	userAgent       = "Apifox/1.0.0 (https://apifox.com)"
	contentTypeJSON = "application/json"

	probeQuestion = "生成一个贪吃蛇项目"
	probeLanguage = "python"
)

// Result holds the raw outcome of a single probe run.
type Result struct {
	Body   []byte
	Report domain.RunReport
}

// Service issues one generation request per run and reports the outcome.
type Service struct {
	client httpclient.Client
	target string
	fanout ReportPublisher
	log    logger.Logger
	store  RunRecorder
}

// NewService wires a probe against the target base URL.
func NewService(client httpclient.Client, target string, fanout ReportPublisher, log logger.Logger, store RunRecorder) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		client: client,
		target: target,
		fanout: fanout,
		log:    log,
		store:  store,
	}
}

// Execute performs a single probe run. The returned body is the verbatim
// response payload, which callers print untouched.
func (s *Service) Execute(ctx context.Context) (*Result, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("probe service is not initialized")
	}

	payload, err := json.Marshal(domain.GenerationRequest{
		Question: probeQuestion,
		Language: probeLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := s.target + generatePath
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": contentTypeJSON,
	}

	runID := uuid.NewString()
	started := time.Now()

	s.log.InfoObj("probe started", "probe_meta", map[string]any{
		"run_id": runID,
		"target": url,
	})

	resp, err := s.client.Post(ctx, url, payload, headers)
	elapsed := time.Since(started)
	if err != nil {
		s.log.ErrorObj("probe request failed", "probe_error", map[string]any{
			"run_id": runID,
			"target": url,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("post %s: %w", url, err)
	}

	body := resp.Body()
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("response body is not valid utf-8")
	}

	contentType := resp.Header("Content-Type")
	report := domain.RunReport{
		RunID:       runID,
		Target:      url,
		Method:      http.MethodPost,
		StatusCode:  resp.StatusCode(),
		Succeeded:   resp.StatusCode() >= 200 && resp.StatusCode() < 300,
		DurationMs:  elapsed.Milliseconds(),
		BodyBytes:   len(body),
		ContentType: contentType,
		Summary:     buildSummary(contentType, body),
		StartedAt:   started.UTC(),
	}

	s.report(ctx, report)

	if !report.Succeeded {
		s.log.WarnObj("probe got non-2xx status", "probe_status", map[string]any{
			"run_id":      runID,
			"status_code": report.StatusCode,
			"summary":     report.Summary,
		})
	}

	s.log.InfoObj("probe completed", "probe_result", map[string]any{
		"run_id":      runID,
		"status_code": report.StatusCode,
		"elapsed_ms":  report.DurationMs,
		"body_bytes":  report.BodyBytes,
	})

	return &Result{Body: body, Report: report}, nil
}

// report fans the run out to sinks and the history store. Failures here are
// logged and never fail the probe itself.
func (s *Service) report(ctx context.Context, report domain.RunReport) {
	if s.fanout != nil && s.fanout.Size() > 0 {
		delivered, err := s.fanout.Deliver(ctx, sinks.NewEvent(report))
		if err != nil {
			s.log.ErrorObj("sink delivery failed", "sink_errors", map[string]any{
				"run_id":    report.RunID,
				"delivered": delivered,
				"error":     err.Error(),
			})
		}
	}
	if s.store != nil {
		if err := s.store.RecordRun(ctx, report); err != nil {
			s.log.ErrorObj("history record failed", "history_error", map[string]any{
				"run_id": report.RunID,
				"error":  err.Error(),
			})
		}
	}
}
