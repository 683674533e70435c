package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/draftsmith-hq/genprobe/internal/domain"
	"github.com/draftsmith-hq/genprobe/pkg/httpclient"
	"github.com/draftsmith-hq/genprobe/pkg/sinks"
)

// fakeFanout records delivered events and can inject errors.
type fakeFanout struct {
	mu     sync.Mutex
	events []sinks.Event
	err    error
}

func (f *fakeFanout) Deliver(_ context.Context, evt sinks.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeFanout) Size() int { return 1 }

// fakeRecorder records run reports and can inject errors.
type fakeRecorder struct {
	mu      sync.Mutex
	reports []domain.RunReport
	err     error
}

func (f *fakeRecorder) RecordRun(_ context.Context, report domain.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return f.err
}

type capturedRequest struct {
	method      string
	path        string
	userAgent   string
	contentType string
	body        []byte
}

func newCaptureServer(t *testing.T, status int, respBody []byte, captured *[]capturedRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		mu.Lock()
		*captured = append(*captured, capturedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			userAgent:   r.Header.Get("User-Agent"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
		w.Write(respBody)
	}))
}

func TestExecuteSendsFixedGenerationRequest(t *testing.T) {
	var captured []capturedRequest
	respBody := []byte(`{"status":"ok"}`)
	srv := newCaptureServer(t, http.StatusOK, respBody, &captured)
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	result, err := svc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(captured) != 1 {
		t.Fatalf("expected 1 request, got %d", len(captured))
	}
	req := captured[0]
	if req.method != http.MethodPost || req.path != "/generate" {
		t.Fatalf("expected POST /generate, got %s %s", req.method, req.path)
	}
	if req.userAgent != "Apifox/1.0.0 (https://apifox.com)" {
		t.Fatalf("User-Agent = %q", req.userAgent)
	}
	if req.contentType != "application/json" {
		t.Fatalf("Content-Type = %q", req.contentType)
	}

	var fields map[string]any
	if err := json.Unmarshal(req.body, &fields); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected exactly question and language, got %#v", fields)
	}
	if fields["question"] != "生成一个贪吃蛇项目" {
		t.Fatalf("question = %q", fields["question"])
	}
	if fields["language"] != "python" {
		t.Fatalf("language = %q", fields["language"])
	}

	if !bytes.Equal(result.Body, respBody) {
		t.Fatalf("body not passed through verbatim: %q", result.Body)
	}
	report := result.Report
	if report.RunID == "" {
		t.Fatalf("report missing run id")
	}
	if report.Target != srv.URL+"/generate" || report.Method != http.MethodPost {
		t.Fatalf("report target/method wrong: %+v", report)
	}
	if report.StatusCode != http.StatusOK || !report.Succeeded {
		t.Fatalf("report status wrong: %+v", report)
	}
	if report.BodyBytes != len(respBody) {
		t.Fatalf("report body bytes = %d", report.BodyBytes)
	}
}

func TestExecuteRequestBytesDeterministic(t *testing.T) {
	var captured []capturedRequest
	srv := newCaptureServer(t, http.StatusOK, []byte(`{}`), &captured)
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := svc.Execute(context.Background()); err != nil {
			t.Fatalf("Execute #%d: %v", i+1, err)
		}
	}

	if len(captured) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(captured))
	}
	if !bytes.Equal(captured[0].body, captured[1].body) {
		t.Fatalf("request bodies differ:\n%q\n%q", captured[0].body, captured[1].body)
	}
}

func TestExecutePassesThroughErrorResponses(t *testing.T) {
	respBody := []byte("<html><head><title>502 Bad Gateway</title></head><body>upstream died</body></html>")
	var captured []capturedRequest
	srv := newCaptureServer(t, http.StatusBadGateway, respBody, &captured)
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	result, err := svc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute should not fail on HTTP errors: %v", err)
	}

	if !bytes.Equal(result.Body, respBody) {
		t.Fatalf("error body not passed through verbatim: %q", result.Body)
	}
	if result.Report.Succeeded || result.Report.StatusCode != http.StatusBadGateway {
		t.Fatalf("report should mark failure: %+v", result.Report)
	}
	if result.Report.Summary != "502 Bad Gateway" {
		t.Fatalf("summary = %q", result.Report.Summary)
	}
}

func TestExecuteFailsWhenConnectionDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatalf("server does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("hijack: %v", err)
		}
		conn.Close()
	}))
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	if _, err := svc.Execute(context.Background()); err == nil {
		t.Fatalf("expected error when server drops the connection")
	}
}

func TestExecuteTimesOutOnHungServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	defer close(release)

	svc := NewService(httpclient.NewRestyClient(100*time.Millisecond), srv.URL, nil, nil, nil)
	if _, err := svc.Execute(context.Background()); err == nil {
		t.Fatalf("expected timeout error from a hung server")
	}
}

func TestExecuteRejectsInvalidUTF8(t *testing.T) {
	var captured []capturedRequest
	srv := newCaptureServer(t, http.StatusOK, []byte{0xff, 0xfe, 0xfd}, &captured)
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	if _, err := svc.Execute(context.Background()); err == nil {
		t.Fatalf("expected error for invalid utf-8 response")
	}
}

func TestExecuteAcceptsMultibyteResponses(t *testing.T) {
	respBody := []byte(`{"代码":"print('你好')"}`)
	var captured []capturedRequest
	srv := newCaptureServer(t, http.StatusOK, respBody, &captured)
	defer srv.Close()

	svc := NewService(httpclient.NewRestyClient(0), srv.URL, nil, nil, nil)
	result, err := svc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.Equal(result.Body, respBody) {
		t.Fatalf("multibyte body not passed through: %q", result.Body)
	}
}

func TestExecuteReportsToFanoutAndStore(t *testing.T) {
	var captured []capturedRequest
	srv := newCaptureServer(t, http.StatusOK, []byte(`{"status":"ok"}`), &captured)
	defer srv.Close()

	fanout := &fakeFanout{}
	recorder := &fakeRecorder{}
	svc := NewService(httpclient.NewRestyClient(0), srv.URL, fanout, nil, recorder)

	result, err := svc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(fanout.events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(fanout.events))
	}
	if fanout.events[0].RunID != result.Report.RunID {
		t.Fatalf("event run id %q != report run id %q", fanout.events[0].RunID, result.Report.RunID)
	}
	if len(recorder.reports) != 1 || recorder.reports[0].RunID != result.Report.RunID {
		t.Fatalf("expected run recorded, got %#v", recorder.reports)
	}
}

func TestExecuteSurvivesReportingFailures(t *testing.T) {
	var captured []capturedRequest
	respBody := []byte(`{"status":"ok"}`)
	srv := newCaptureServer(t, http.StatusOK, respBody, &captured)
	defer srv.Close()

	fanout := &fakeFanout{err: errors.New("queue down")}
	recorder := &fakeRecorder{err: errors.New("disk full")}
	svc := NewService(httpclient.NewRestyClient(0), srv.URL, fanout, nil, recorder)

	result, err := svc.Execute(context.Background())
	if err != nil {
		t.Fatalf("reporting failures must not fail the probe: %v", err)
	}
	if !bytes.Equal(result.Body, respBody) {
		t.Fatalf("body not passed through: %q", result.Body)
	}
}

func TestExecuteRequiresClient(t *testing.T) {
	svc := NewService(nil, "http://127.0.0.1:8000", nil, nil, nil)
	if _, err := svc.Execute(context.Background()); err == nil {
		t.Fatalf("expected error for missing client")
	}
}
