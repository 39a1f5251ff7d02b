package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reel-compare/internal/config"
	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
	"reel-compare/internal/domain/ports/adapter"
	"reel-compare/internal/infra/adapters/media"
	"reel-compare/internal/infra/repo/memory"
	"reel-compare/internal/pipeline"
)

const modelOutput = `{
	"summary": "A wins.",
	"per_video": {"a": {"score": 80}, "b": {"score": 60}},
	"actions": ["a1", "a2", "a3"]
}`

type stubToolchain struct{}

func (stubToolchain) Probe(ctx context.Context, address string) (*adapter.MediaInfo, error) {
	return &adapter.MediaInfo{EstimatedSizeBytes: 1 << 20, Title: "t"}, nil
}

func (stubToolchain) Download(ctx context.Context, address, destPath string) error {
	return os.WriteFile(destPath, []byte("video"), 0o644)
}

func (stubToolchain) Sanitize(ctx context.Context, srcPath, dstPath string) error {
	return os.WriteFile(dstPath, []byte("clean"), 0o644)
}

func (stubToolchain) ExtractAudio(ctx context.Context, srcPath, wavPath string) error {
	return os.WriteFile(wavPath, []byte("RIFF"), 0o644)
}

type stubProvider struct {
	hang bool
}

func (s stubProvider) UploadMedia(ctx context.Context, path string) (*adapter.MediaHandle, error) {
	return &adapter.MediaHandle{Name: "files/x", URI: "uri://x", MIMEType: "video/mp4"}, nil
}

func (s stubProvider) Infer(ctx context.Context, modelName, prompt string, handles []*adapter.MediaHandle) (string, error) {
	if s.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return modelOutput, nil
}

func (s stubProvider) DeleteMedia(ctx context.Context, handle *adapter.MediaHandle) error {
	return nil
}

func testServer(t *testing.T, provider adapter.InferenceProvider) (*Server, *memory.JobRepo) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, DirectTimeout: time.Second},
		Media: config.MediaConfig{
			ProbeTimeout:    time.Second,
			DownloadTimeout: time.Second,
			SanitizeTimeout: time.Second,
			MaxSizeBytes:    50 << 20,
			AllowedHosts:    []string{"tiktok.com", "youtu.be"},
		},
		AI:      config.AIConfig{Model: "gemini-2.0-flash", ModelBudget: 5 * time.Second},
		Compare: config.CompareConfig{Mode: "direct"},
		Prompt: config.PromptConfig{
			Primary:     config.VariantConfig{TimelineMax: 8, Severities: []string{"low", "medium", "high", "critical"}, MaxFieldChars: 600},
			Abbreviated: config.VariantConfig{TimelineMax: 5, Severities: []string{"low", "medium", "high"}, MaxFieldChars: 200},
		},
	}

	cache, err := media.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	repo := memory.NewJobRepo()
	log := zerolog.Nop()
	orch := pipeline.NewOrchestrator(repo, stubToolchain{}, provider, nil, nil, nil, cache, cfg, &log)
	return NewServer(repo, orch, cfg, &log), repo
}

func compareBody() []byte {
	return []byte(`{
		"collectionId": "col-1",
		"fabVersionId": "fab-1",
		"a": {"kind": "url", "address": "https://www.tiktok.com/@x/video/1"},
		"b": {"kind": "url", "address": "https://youtu.be/abc"}
	}`)
}

func postJSON(t *testing.T, h http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndPollJob(t *testing.T) {
	srv, repo := testServer(t, stubProvider{})
	h := srv.Handler()

	rec := postJSON(t, h, "/api/v1/compare/jobs", compareBody())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	var created struct {
		JobID   string `json:"jobId"`
		TraceID string `json:"traceId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.JobID == "" || created.TraceID == "" {
		t.Fatalf("missing ids in %s", rec.Body)
	}

	// Poll until the background run completes.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("job never finished")
		}
		job, err := repo.Get(context.Background(), created.JobID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if job.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = getPath(t, h, "/api/v1/compare/jobs/"+created.JobID)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll status = %d", rec.Code)
	}
	var job model.CompareJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != model.JobStatusDone {
		t.Fatalf("status = %q (code %q)", job.Status, job.ErrorCode)
	}
	if job.Result == nil || len(job.Result.Actions) != 3 {
		t.Fatalf("result not attached properly: %+v", job.Result)
	}
}

func TestPollUnknownJob(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	rec := getPath(t, srv.Handler(), "/api/v1/compare/jobs/no-such-id")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.CodeNotFound) {
		t.Fatalf("body must carry NOT_FOUND, got %s", rec.Body)
	}
}

func TestRetryConflictsWhileRunning(t *testing.T) {
	srv, repo := testServer(t, stubProvider{hang: true})
	h := srv.Handler()

	rec := postJSON(t, h, "/api/v1/compare/jobs", compareBody())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created struct {
		JobID string `json:"jobId"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	// Wait for the run to take the processing slot.
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ := repo.Get(context.Background(), created.JobID)
		if job != nil && job.Status == model.JobStatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = postJSON(t, h, "/api/v1/compare/jobs/"+created.JobID+"/retry", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("retry of running job status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.CodeAlreadyRunning) {
		t.Fatalf("body must carry ALREADY_RUNNING, got %s", rec.Body)
	}
}

func TestRetryUnknownJob(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	rec := postJSON(t, srv.Handler(), "/api/v1/compare/jobs/missing/retry", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateRejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	h := srv.Handler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{
			"unknown kind",
			`{"a":{"kind":"magnet","address":"x"},"b":{"kind":"url","address":"https://youtu.be/a"}}`,
			http.StatusBadRequest,
		},
		{
			"disallowed host",
			`{"a":{"kind":"url","address":"https://vimeo.com/1"},"b":{"kind":"url","address":"https://youtu.be/a"}}`,
			http.StatusBadRequest,
		},
		{
			"url kind without address",
			`{"a":{"kind":"url"},"b":{"kind":"url","address":"https://youtu.be/a"}}`,
			http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/v1/compare/jobs", []byte(tc.body))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestDirectCompare(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	rec := postJSON(t, srv.Handler(), "/api/v1/compare/direct", compareBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	var resp struct {
		Success bool                    `json:"success"`
		Result  *model.ComparisonResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Result == nil {
		t.Fatalf("unexpected response %s", rec.Body)
	}
	if len(resp.Result.Actions) != 3 {
		t.Fatalf("actions invariant broken: %v", resp.Result.Actions)
	}
}

func TestDirectCompareTimeout(t *testing.T) {
	srv, _ := testServer(t, stubProvider{hang: true})
	srv.cfg.Server.DirectTimeout = 50 * time.Millisecond
	srv.cfg.AI.ModelBudget = 40 * time.Millisecond

	rec := postJSON(t, srv.Handler(), "/api/v1/compare/direct", compareBody())
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504 (body %s)", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), domain.CodeTimeout) {
		t.Fatalf("body must carry TIMEOUT, got %s", rec.Body)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	rec := getPath(t, srv.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTraceIDPropagation(t *testing.T) {
	srv, _ := testServer(t, stubProvider{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare/jobs", bytes.NewReader(compareBody()))
	req.Header.Set("X-Trace-Id", "trace-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("X-Trace-Id") != "trace-123" {
		t.Fatal("trace id header must echo back")
	}
	var created struct {
		TraceID string `json:"traceId"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.TraceID != "trace-123" {
		t.Fatalf("job must adopt the caller's trace id, got %q", created.TraceID)
	}
}
