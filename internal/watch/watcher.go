// Package watch detects when a streamed response buffer has stopped growing.
// A pipeline that spools model output to disk gets a Trigger either when the
// file has been quiet for the stall window or when a "<buffer>.done" marker
// appears, and can then run recovery on what was written.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"genrecover/internal/config"
	"genrecover/internal/logging"
	"genrecover/internal/metrics"
)

// Trigger reasons.
const (
	ReasonStall = "stall"
	ReasonDone  = "done"
)

// Trigger describes a buffer that is ready for analysis.
type Trigger struct {
	Path   string
	Reason string
	Buffer string
}

// Handler receives triggers on the watcher goroutine.
type Handler func(ctx context.Context, t Trigger)

// Stats tracks watcher activity.
type Stats struct {
	Writes        int
	StallTriggers int
	DoneTriggers  int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches a spool directory for response buffers.
type Watcher struct {
	mu           sync.Mutex
	watcher      *fsnotify.Watcher
	dir          string
	stallAfter   time.Duration
	pollInterval time.Duration
	doneSuffix   string
	handler      Handler
	pending      map[string]time.Time // buffer path -> last write
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool

	stats Stats
}

// New creates a watcher for dir. Every regular file in dir is treated as a
// response buffer except done markers.
func New(dir string, cfg *config.Config, handler Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	doneSuffix := cfg.Watch.DoneSuffix
	if doneSuffix == "" {
		doneSuffix = ".done"
	}

	return &Watcher{
		watcher:      fw,
		dir:          filepath.Clean(dir),
		stallAfter:   cfg.GetStallAfter(),
		pollInterval: cfg.GetPollInterval(),
		doneSuffix:   doneSuffix,
		handler:      handler,
		pending:      make(map[string]time.Time),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are processed on a
// background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.setStopped()
		return fmt.Errorf("create spool dir %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.setStopped()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logging.Watch("watching %s (stall after %s)", w.dir, w.stallAfter)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("fsnotify: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processStalled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	path := filepath.Clean(event.Name)

	if strings.HasSuffix(path, w.doneSuffix) {
		if event.Op&fsnotify.Create == 0 {
			return
		}
		buffer := strings.TrimSuffix(path, w.doneSuffix)
		w.mu.Lock()
		delete(w.pending, buffer)
		w.mu.Unlock()
		w.fire(ctx, buffer, ReasonDone)
		return
	}

	logging.WatchDebug("write to %s", path)

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.stats.Writes++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = path
	w.mu.Unlock()
}

// processStalled fires for buffers quiet for at least the stall window.
func (w *Watcher) processStalled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var stalled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.stallAfter {
			stalled = append(stalled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range stalled {
		w.fire(ctx, path, ReasonStall)
	}
}

func (w *Watcher) fire(ctx context.Context, path, reason string) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.WatchDebug("buffer vanished before %s trigger: %s", reason, path)
			return
		}
		logging.WatchError("read %s: %v", path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	switch reason {
	case ReasonStall:
		w.stats.StallTriggers++
	case ReasonDone:
		w.stats.DoneTriggers++
	}
	w.mu.Unlock()

	metrics.RecordWatchTrigger(reason)
	logging.Watch("%s trigger for %s (%d bytes)", reason, path, len(content))

	if w.handler != nil {
		w.handler(ctx, Trigger{Path: path, Reason: reason, Buffer: string(content)})
	}
}
