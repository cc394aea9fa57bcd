package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"betterats/internal/config"
	"betterats/internal/errors"
	"betterats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu       sync.Mutex
	paths    []string
	contents []string
	reqs     []string
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, paths []string, requirements []string) (*types.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = paths
	f.reqs = requirements
	for _, p := range paths {
		data, _ := os.ReadFile(p)
		f.contents = append(f.contents, string(data))
	}
	if f.err != nil {
		return nil, f.err
	}
	assessments := make([]types.RequirementAssessment, len(requirements))
	for i, r := range requirements {
		assessments[i] = types.RequirementAssessment{Requirement: r, PresentInDocuments: true}
	}
	return &types.ProcessResult{Candidate: types.CandidateProfile{Experiences: []types.Experience{}}, Assessments: assessments}, nil
}

type fakeStats struct{}

func (fakeStats) Stats() map[string]any {
	return map[string]any{"assessment": map[string]any{"state": "closed"}}
}

func newTestServer(t *testing.T, proc *fakeProcessor, mutate func(*ServerConfig)) *Server {
	t.Helper()
	cfg := ServerConfig{
		Version:        "test",
		MaxRequestSize: 1 << 20,
		UploadDir:      t.TempDir(),
		AllowedOrigins: []string{"*"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServer(&config.Config{}, cfg, errors.NewLoggerWithWriter(io.Discard, slog.LevelError))
	s.Processor = proc
	s.Generators = fakeStats{}
	t.Cleanup(func() {
		if s.RateLimiter != nil {
			s.RateLimiter.Close()
		}
	})
	return s
}

func processRequest(t *testing.T, input string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if input != "" {
		require.NoError(t, mw.WriteField(processInputField, input))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(filesField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, nil)
	rec := httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(t, &fakeProcessor{}, nil)
	s.Logger = errors.NewLoggerWithWriter(&logs, slog.LevelDebug)

	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, map[string]any{"score": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "Failed to encode response")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, nil)
	rec := httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "betterats", body["service"])
	assert.Contains(t, body, "generators")
}

func TestProcessSuccess(t *testing.T) {
	proc := &fakeProcessor{}
	s := newTestServer(t, proc, nil)

	req := processRequest(t, `{"job_requirements":["Go","Kubernetes"]}`, map[string]string{"cv.pdf": "pdf-bytes"})
	rec := httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result types.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Assessments, 2)
	assert.Equal(t, "Go", result.Assessments[0].Requirement)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Len(t, proc.paths, 1)
	assert.Equal(t, ".pdf", filepath.Ext(proc.paths[0]))
	assert.Equal(t, s.UploadDir, filepath.Dir(proc.paths[0]))
	assert.Equal(t, []string{"pdf-bytes"}, proc.contents)

	// uploads are removed once the response is written
	_, err := os.Stat(proc.paths[0])
	assert.True(t, os.IsNotExist(err))
}

func TestProcessBadRequests(t *testing.T) {
	tests := []struct {
		name  string
		input string
		files map[string]string
	}{
		{name: "missing input", files: map[string]string{"cv.pdf": "x"}},
		{name: "invalid json", input: "{", files: map[string]string{"cv.pdf": "x"}},
		{name: "no requirements", input: `{"job_requirements":[]}`, files: map[string]string{"cv.pdf": "x"}},
		{name: "no files", input: `{"job_requirements":["Go"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeProcessor{}, nil)
			rec := httptest.NewRecorder()
			s.Handler(nil).ServeHTTP(rec, processRequest(t, tt.input, tt.files))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProcessMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, nil)
	rec := httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProcessErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "extraction",
			err:    errors.NewExtractionError("cv.pdf", "bad pdf", nil),
			status: http.StatusBadRequest,
			code:   errors.ErrCodeExtractionFailed,
		},
		{
			name: "generation behind assessment",
			err: errors.NewAssessmentError(1, "Go",
				errors.NewGenerationError(errors.ErrCodeGenerationFailed, "quota", nil)),
			status: http.StatusBadGateway,
			code:   errors.ErrCodeRequirementFailed,
		},
		{
			name:   "malformed reply",
			err:    errors.NewMalformedReplyError("nope", "not json", nil),
			status: http.StatusBadGateway,
			code:   errors.ErrCodeMalformedReply,
		},
		{
			name:   "template",
			err:    errors.NewTemplateError(errors.ErrCodeTemplateMissingVar, "missing requirement", nil),
			status: http.StatusInternalServerError,
			code:   errors.ErrCodeTemplateMissingVar,
		},
		{
			name:   "internal",
			err:    errors.NewInternalError("BOOM", "boom", nil),
			status: http.StatusInternalServerError,
			code:   "BOOM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeProcessor{err: tt.err}, nil)
			rec := httptest.NewRecorder()
			s.Handler(nil).ServeHTTP(rec, processRequest(t, `{"job_requirements":["Go"]}`, map[string]string{"cv.docx": "x"}))

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, func(c *ServerConfig) {
		c.APIKeys = []string{"secret-key-123"}
	})
	handler := s.Handler(nil)
	input := `{"job_requirements":["Go"]}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, processRequest(t, input, map[string]string{"cv.pdf": "x"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := processRequest(t, input, map[string]string{"cv.pdf": "x"})
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = processRequest(t, input, map[string]string{"cv.pdf": "x"})
	req.Header.Set("Authorization", "Bearer secret-key-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays open
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, func(c *ServerConfig) { c.MaxRequestSize = 64 })
	rec := httptest.NewRecorder()
	req := processRequest(t, `{"job_requirements":["Go"]}`, map[string]string{"cv.pdf": strings.Repeat("x", 1024)})
	s.Handler(nil).ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, func(c *ServerConfig) {
		c.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})
	handler := s.Handler(nil)
	input := `{"job_requirements":["Go"]}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, processRequest(t, input, map[string]string{"cv.pdf": "x"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, processRequest(t, input, map[string]string{"cv.pdf": "x"}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, 1, s.RateLimiter.Stats()["rejected_requests"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/process", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	s = newTestServer(t, &fakeProcessor{}, func(c *ServerConfig) { c.AllowedOrigins = []string{"https://ok.example"} })
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	s.Handler(nil).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.7")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}

func TestWriteServerInfo(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{}, nil)
	var buf bytes.Buffer
	s.writeServerInfo(&buf)
	assert.Contains(t, buf.String(), "POST /process")
	assert.Contains(t, buf.String(), "Request size limit: 1.0 MB")
}
