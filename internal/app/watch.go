package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

// corpusWatcher watches the corpus paths and calls reload once the changes
// have settled for the debounce window.
//
// Directories are watched recursively. A file path watches its parent
// directory and only reacts to events on that file.
type corpusWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	exts     []string
	files    map[string]struct{}
	reload   func(ctx context.Context)

	done     chan struct{}
	stopOnce sync.Once
}

func newCorpusWatcher(paths, exts []string, debounce time.Duration, reload func(ctx context.Context)) (*corpusWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &corpusWatcher{
		watcher:  fw,
		debounce: debounce,
		exts:     exts,
		files:    make(map[string]struct{}),
		reload:   reload,
		done:     make(chan struct{}),
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *corpusWatcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[filepath.Clean(path)] = struct{}{}
		return w.watcher.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// relevant reports whether an event on name can change the corpus.
func (w *corpusWatcher) relevant(name string) bool {
	name = filepath.Clean(name)
	if len(w.files) > 0 {
		if _, ok := w.files[name]; ok {
			return true
		}
	}
	return slices.Contains(w.exts, strings.ToLower(filepath.Ext(name)))
}

func (w *corpusWatcher) run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.add(event.Name)
				}
			}
			if !w.relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("Corpus change detected.", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Corpus watcher error.", "error", err)
		}
	}
}

func (w *corpusWatcher) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// Watch starts reloading the engine whenever the corpus changes. It
// returns once the watcher is installed; reloading stops when ctx is done
// or the app is closed.
func (a *App) Watch(ctx context.Context) error {
	w, err := newCorpusWatcher(a.config.Paths, a.loader.Extensions(), a.config.ReloadDebounce, func(ctx context.Context) {
		_, _ = a.Reload(ctx)
	})
	if err != nil {
		return err
	}
	a.watcher = w
	go w.run(ctx)
	a.logger.Info("Watching corpus for changes.", "paths", a.config.Paths, "debounce", a.config.ReloadDebounce)
	return nil
}
