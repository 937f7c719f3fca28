package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagepub/internal/config"
	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/evidence"
	"git.home.luguber.info/inful/pagepub/internal/generate"
	"git.home.luguber.info/inful/pagepub/internal/publish"
)

type stubPipeline struct {
	mu        sync.Mutex
	published []publish.Task
	existing  map[string]string
	result    *publish.Result
	err       error
	readmes   map[string]string
}

func (s *stubPipeline) Publish(_ context.Context, task publish.Task) (*publish.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, task)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubPipeline) FetchExisting(_ context.Context, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.existing[name]
	return doc, ok
}

func (s *stubPipeline) UpdateReadme(_ context.Context, name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readmes == nil {
		s.readmes = make(map[string]string)
	}
	s.readmes[name] = content
}

type stubGenerator struct {
	mu       sync.Mutex
	requests []generate.Request
	files    map[string]string
	err      error
}

func (s *stubGenerator) GenerateApp(_ context.Context, req generate.Request) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.files, s.err
}

func (s *stubGenerator) GenerateReadme(_ context.Context, task, _, _, _ string) (string, error) {
	return "# " + task, nil
}

type stubNotifier struct {
	calls chan struct {
		url     string
		payload any
	}
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{calls: make(chan struct {
		url     string
		payload any
	}, 4)}
}

func (s *stubNotifier) Notify(_ context.Context, url string, payload any) bool {
	s.calls <- struct {
		url     string
		payload any
	}{url, payload}
	return true
}

type stubEvidence struct {
	mu      sync.Mutex
	records []evidence.Record
}

func (s *stubEvidence) Submit(record evidence.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *stubEvidence) Records() []evidence.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evidence.Record, len(s.records))
	copy(out, s.records)
	return out
}

type testHarness struct {
	server    *Server
	pipeline  *stubPipeline
	generator *stubGenerator
	notifier  *stubNotifier
	evidence  *stubEvidence
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.Secret = "hunter2"

	h := &testHarness{
		pipeline: &stubPipeline{
			existing: map[string]string{},
			result: &publish.Result{
				RepoURL:    "https://github.com/tester/calc",
				PagesURL:   "https://tester.github.io/calc/",
				CommitSHA:  "abc123",
				Configured: true,
				Live:       true,
			},
		},
		generator: &stubGenerator{files: map[string]string{"index.html": "<html>app</html>"}},
		notifier:  newStubNotifier(),
		evidence:  &stubEvidence{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.server = New(cfg, Deps{
		Pipeline:  h.pipeline,
		Generator: h.generator,
		Notifier:  h.notifier,
		Evidence:  h.evidence,
	}, logger)
	return h
}

func validBody() map[string]any {
	return map[string]any{
		"email":          "dev@example.com",
		"secret":         "hunter2",
		"task":           "calc",
		"round":          1,
		"nonce":          "n-1",
		"brief":          "Build a calculator",
		"checks":         []string{"adds numbers"},
		"evaluation_url": "https://eval.example/cb",
	}
}

func (h *testHarness) post(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api-endpoint", &buf)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPublishEndpointSuccess(t *testing.T) {
	h := newHarness(t)
	rec := h.post(t, validBody())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PublishResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "https://github.com/tester/calc", resp.RepoURL)
	assert.Equal(t, "abc123", resp.CommitSHA)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Len(t, h.pipeline.published, 1)
	assert.Equal(t, "calc", h.pipeline.published[0].Name)
	assert.Equal(t, "<html>app</html>", h.pipeline.published[0].Document)

	// Detached notification fires with the evaluation payload.
	select {
	case call := <-h.notifier.calls:
		assert.Equal(t, "https://eval.example/cb", call.url)
		payload, ok := call.payload.(EvaluationPayload)
		require.True(t, ok)
		assert.Equal(t, "calc", payload.Task)
		assert.Equal(t, "n-1", payload.Nonce)
	case <-time.After(time.Second):
		t.Fatal("notifier was never invoked")
	}

	records := h.evidence.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "success", records[0].Status)
	assert.Equal(t, "calc", records[0].Task)

	assert.Equal(t, "# calc", h.pipeline.readmes["calc"])
}

func TestPublishEndpointMissingRequiredField(t *testing.T) {
	h := newHarness(t)
	body := validBody()
	delete(body, "nonce")
	rec := h.post(t, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
	assert.Empty(t, h.pipeline.published, "pipeline must not run on invalid input")
}

func TestPublishEndpointMissingTaskIsTolerated(t *testing.T) {
	h := newHarness(t)
	body := validBody()
	delete(body, "task")
	delete(body, "checks")
	rec := h.post(t, body)

	// task/checks are expected but not required; absence only logs.
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPublishEndpointInvalidSecret(t *testing.T) {
	h := newHarness(t)
	body := validBody()
	body["secret"] = "wrong"
	rec := h.post(t, body)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.pipeline.published)
}

func TestPublishEndpointInvalidRound(t *testing.T) {
	h := newHarness(t)
	body := validBody()
	body["round"] = 0
	rec := h.post(t, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body["round"] = "two"
	rec = h.post(t, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishEndpointRejectsNonObjectBody(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/api-endpoint", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishEndpointRevisionRoundUsesExistingCode(t *testing.T) {
	h := newHarness(t)
	h.pipeline.existing["calc"] = "<html>round1</html>"
	body := validBody()
	body["round"] = 2
	rec := h.post(t, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, h.generator.requests, 1)
	assert.Equal(t, "<html>round1</html>", h.generator.requests[0].ExistingCode)
	assert.Equal(t, 2, h.generator.requests[0].Round)
}

func TestPublishEndpointPipelineFailure(t *testing.T) {
	h := newHarness(t)
	h.pipeline.err = pperrors.StepFailed("upsert_document", assert.AnError)
	rec := h.post(t, validBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	records := h.evidence.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "error", records[0].Status)
	assert.NotEmpty(t, records[0].Error)
}

func TestPublishEndpointGenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.generator.err = pperrors.GenerationError(assert.AnError)
	rec := h.post(t, validBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, h.pipeline.published)
}

func TestPublishEndpointPlaceholderWhenIndexMissing(t *testing.T) {
	h := newHarness(t)
	h.generator.files = map[string]string{"other.txt": "x"}
	rec := h.post(t, validBody())

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.pipeline.published, 1)
	assert.Equal(t, generate.Placeholder, h.pipeline.published[0].Document)
}

func TestPublishEndpointWrongMethod(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api-endpoint", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := pperrors.NewHTTPErrorAdapter(logger)
	handler := Chain(logger, adapter)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
