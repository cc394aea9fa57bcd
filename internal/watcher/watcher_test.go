package watcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"betterats/internal/errors"
	"betterats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (p *recordingProcessor) Process(_ context.Context, paths []string, requirements []string) (*types.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	for _, path := range paths {
		p.calls[filepath.Base(path)]++
	}
	if p.err != nil {
		return nil, p.err
	}
	assessments := make([]types.RequirementAssessment, len(requirements))
	for i, r := range requirements {
		assessments[i] = types.RequirementAssessment{Requirement: r}
	}
	return &types.ProcessResult{Candidate: types.CandidateProfile{Experiences: []types.Experience{}}, Assessments: assessments}, nil
}

func (p *recordingProcessor) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func testLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(io.Discard, slog.LevelError)
}

func startWatcher(t *testing.T, cfg Config, p *recordingProcessor) {
	t.Helper()
	w, err := New(cfg, p, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give fsnotify a moment to register the directory
	time.Sleep(50 * time.Millisecond)
}

func TestNewValidation(t *testing.T) {
	dir := t.TempDir()
	p := &recordingProcessor{}

	_, err := New(Config{Requirements: []string{"Go"}}, p, testLogger())
	assert.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(dir, "missing"), Requirements: []string{"Go"}}, p, testLogger())
	assert.Error(t, err)

	_, err = New(Config{Dir: dir}, p, testLogger())
	assert.Error(t, err)

	w, err := New(Config{Dir: dir, Requirements: []string{"Go"}}, p, testLogger())
	require.NoError(t, err)
	assert.Equal(t, dir, w.cfg.OutDir)
	assert.Equal(t, defaultDebounce, w.cfg.Debounce)
}

func TestWatcherProcessesNewDocuments(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	p := &recordingProcessor{}
	startWatcher(t, Config{Dir: dir, OutDir: out, Requirements: []string{"Go"}, Debounce: 30 * time.Millisecond}, p)

	path := filepath.Join(dir, "cv.pdf")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("chunk"), 0600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))

	resultFile := filepath.Join(out, "cv.result.json")
	require.Eventually(t, func() bool {
		_, err := os.Stat(resultFile)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(resultFile)
	require.NoError(t, err)
	var result types.ProcessResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Assessments, 1)
	assert.Equal(t, "Go", result.Assessments[0].Requirement)

	// rapid writes collapse into one run
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, p.count("cv.pdf"))
	assert.Equal(t, 0, p.count("notes.txt"))
}

func TestWatcherProcessExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.docx"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "done.pdf"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "done.result.json"), []byte("{}"), 0600))

	processed := make(chan string, 4)
	p := &recordingProcessor{}
	startWatcher(t, Config{
		Dir:             dir,
		Requirements:    []string{"Go"},
		Debounce:        10 * time.Millisecond,
		ProcessExisting: true,
		OnProcessed: func(path string, err error) {
			select {
			case processed <- filepath.Base(path):
			default:
			}
		},
	}, p)

	select {
	case name := <-processed:
		assert.Equal(t, "old.docx", name)
	case <-time.After(5 * time.Second):
		t.Fatal("existing document was not processed")
	}
	assert.Equal(t, 0, p.count("done.pdf"))
}

func TestWatcherReportsFailures(t *testing.T) {
	dir := t.TempDir()
	failure := errors.NewGenerationError(errors.ErrCodeGenerationFailed, "quota", nil)
	outcomes := make(chan error, 1)
	p := &recordingProcessor{err: failure}
	startWatcher(t, Config{
		Dir:          dir,
		Requirements: []string{"Go"},
		Debounce:     10 * time.Millisecond,
		OnProcessed: func(_ string, err error) {
			select {
			case outcomes <- err:
			default:
			}
		},
	}, p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cv.pdf"), []byte("x"), 0600))

	select {
	case err := <-outcomes:
		assert.True(t, errors.HasType(err, errors.ErrorTypeGeneration))
	case <-time.After(5 * time.Second):
		t.Fatal("failure was not reported")
	}
	_, err := os.Stat(filepath.Join(dir, "cv.result.json"))
	assert.True(t, os.IsNotExist(err))
}
