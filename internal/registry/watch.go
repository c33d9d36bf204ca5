package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"batchd/pkg/types"
)

// Watcher re-scans a models directory when artifacts appear or disappear.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func([]types.Model)
	log      zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher builds a watcher for dir. onChange receives the full scan result.
func NewWatcher(dir string, debounce time.Duration, log zerolog.Logger, onChange func([]types.Model)) *Watcher {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange, log: log}
}

// Run blocks until ctx is done or the watcher fails to start.
func (w *Watcher) Run(ctx context.Context) error {
	dir, err := expandHome(w.dir)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("registry watcher: watch %s: %w", dir, err)
	}
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, model := modelExts[strings.ToLower(filepath.Ext(ev.Name))]; !model {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("dir", dir).Msg("registry watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		models, err := LoadDir(w.dir)
		if err != nil {
			w.log.Warn().Err(err).Str("dir", w.dir).Msg("registry rescan failed")
			return
		}
		w.onChange(models)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
