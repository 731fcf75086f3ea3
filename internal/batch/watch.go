package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// WatchConfig configures Watch.
type WatchConfig struct {
	Dir             string
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Debounce        time.Duration
	Logger          *slog.Logger
}

// Watch calls handle once for every supported image created or written under
// cfg.Dir, after it has been quiet for the debounce interval. It blocks
// until ctx is cancelled and returns nil in that case. Handlers run one at a
// time.
func Watch(ctx context.Context, cfg WatchConfig, handle func(path string)) error {
	if handle == nil {
		return errors.New("watch handler is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addWatchDirs(watcher, cfg.Dir, cfg.Recursive); err != nil {
		return err
	}
	logger.Info("Watching directory", "dir", cfg.Dir, "recursive", cfg.Recursive)

	ready := make(chan string, 64)
	var mu sync.Mutex
	timers := map[string]*time.Timer{}
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(cfg.Debounce)
			return
		}
		timers[path] = time.AfterFunc(cfg.Debounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-ready:
			if _, err := os.Stat(path); err != nil {
				continue
			}
			handle(path)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) && cfg.Recursive {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := addWatchDirs(watcher, event.Name, true); err != nil {
						logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !shouldIncludeFile(event.Name, cfg.IncludePatterns, cfg.ExcludePatterns) {
				continue
			}
			schedule(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func addWatchDirs(w *fsnotify.Watcher, root string, recursive bool) error {
	if !recursive {
		if err := w.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
