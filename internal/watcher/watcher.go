// Package watcher processes documents dropped into an inbox directory.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"betterats/internal/common"
	"betterats/internal/documents"
	"betterats/internal/errors"
	"betterats/internal/formatters"
	"betterats/internal/utils"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = time.Second

// Config describes what to watch and where results go.
type Config struct {
	Dir             string
	OutDir          string // defaults to Dir
	Requirements    []string
	Debounce        time.Duration
	ProcessExisting bool

	// OnProcessed, if set, is called after each file with the outcome.
	OnProcessed func(path string, err error)
}

// Watcher runs every new PDF or DOCX in a directory through the pipeline
// and writes <name>.result.json next to it (or into OutDir). Files are
// processed one at a time in the order their debounce timers fire.
type Watcher struct {
	cfg       Config
	processor common.Processor
	files     *common.FileProcessor
	logger    *errors.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New validates cfg and returns a watcher. Nothing is watched until Run.
func New(cfg Config, processor common.Processor, logger *errors.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access watch directory %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path is not a directory: %s", cfg.Dir)
	}
	if len(cfg.Requirements) == 0 {
		return nil, fmt.Errorf("at least one job requirement is required")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = cfg.Dir
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	return &Watcher{
		cfg:       cfg,
		processor: processor,
		files:     common.NewFileProcessor(logger),
		logger:    logger,
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled or the watcher fails. The file being
// processed when ctx is cancelled sees the cancellation; Run returns after
// it finishes.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := fsWatcher.Close(); err != nil {
			w.logger.LogError(err, "Failed to close file watcher")
		}
	}()

	if err := fsWatcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.cfg.Dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan string)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx, ready)
	}()
	defer func() {
		cancel()
		w.stopTimers()
		wg.Wait()
	}()

	if w.cfg.ProcessExisting {
		w.queueExisting(ctx, ready)
	}

	w.logger.Info("Watching directory for documents",
		"dir", w.cfg.Dir,
		"out_dir", w.cfg.OutDir,
		"requirements", len(w.cfg.Requirements),
		"debounce", w.cfg.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Directory watcher stopped", "dir", w.cfg.Dir)
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isDocument(event.Name) {
				w.schedule(ctx, event.Name, ready)
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.LogError(err, "File watcher error", "dir", w.cfg.Dir)
		}
	}
}

// schedule (re)starts the debounce timer for path; writers often emit
// several events per file.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) queueExisting(ctx context.Context, ready chan<- string) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.LogError(err, "Failed to list watch directory", "dir", w.cfg.Dir)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(w.cfg.Dir, entry.Name())
		if entry.IsDir() || !isDocument(path) {
			continue
		}
		if _, err := os.Stat(w.resultPath(path)); err == nil {
			continue
		}
		w.schedule(ctx, path, ready)
	}
}

func (w *Watcher) worker(ctx context.Context, ready <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-ready:
			err := w.processFile(ctx, path)
			if err != nil {
				w.logger.LogError(err, "Failed to process document", "file", path)
			}
			if w.cfg.OnProcessed != nil {
				w.cfg.OnProcessed(path, err)
			}
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) error {
	start := time.Now()
	result, err := w.processor.Process(ctx, []string{path}, w.cfg.Requirements)
	if err != nil {
		return err
	}

	output, err := formatters.GlobalRegistry.Format(*result, "json")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat, "failed to encode result", err)
	}

	out := w.resultPath(path)
	if err := w.files.WriteFile(out, output); err != nil {
		return err
	}

	w.logger.Info("Document processed",
		"file", path,
		"result", out,
		"duration", time.Since(start).String())
	return nil
}

func (w *Watcher) resultPath(path string) string {
	return filepath.Join(w.cfg.OutDir, utils.ResultFileName(path))
}

func isDocument(path string) bool {
	_, ok := documents.MimeTypeFor(path)
	return ok
}
