package ragsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a corpus sync when its local source folder changes.
// Only corpora whose source is a filesystem path can be watched; cloud
// folders are covered by the scheduler.
type Watcher struct {
	service  *Service
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	corpora map[string]Corpus
	timers  map[string]*time.Timer
}

// NewWatcher creates a source-folder watcher for the sync service.
func NewWatcher(service *Service, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		service:  service,
		logger:   logger.With("component", "ragsync-watcher"),
		debounce: 2 * time.Second,
		watcher:  watcher,
		corpora:  make(map[string]Corpus),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch registers a local folder for the given corpus.
func (w *Watcher) Watch(path string, corpus Corpus) error {
	if err := w.watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w.mu.Lock()
	w.corpora[path] = corpus
	w.mu.Unlock()
	w.logger.Info("watching source folder", "path", path, "corpus", corpus.CorpusName)
	return nil
}

// Start consumes filesystem events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.watchLoop(ctx)
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// schedule debounces per-folder so a burst of writes produces one sync.
func (w *Watcher) schedule(ctx context.Context, changed string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, corpus := range w.corpora {
		if changed != path && !strings.HasPrefix(changed, path+"/") {
			continue
		}
		if timer, ok := w.timers[path]; ok {
			timer.Stop()
		}
		corpus := corpus
		w.timers[path] = time.AfterFunc(w.debounce, func() {
			w.service.SyncCorpus(ctx, corpus)
		})
		return
	}
}
