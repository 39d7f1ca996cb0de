// Package fswatch watches the music library for mutations and invalidates
// the per-directory playlist caches when content changes.
package fswatch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/fablebox/fablebox/internal/domain/playlist"
)

// Watcher recursively watches a music root. Any create, remove, rename or
// write under a directory drops that directory's playlist cache, so the next
// playlist build rescans.
type Watcher struct {
	fsw  *fsnotify.Watcher
	root string
}

// New creates a watcher over root and registers all existing directories.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{fsw: fsw, root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || playlist.IsHidden(d.Name()) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	log.Info().Str("root", root).Msg("Watching music library")
	return w, nil
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Library watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if name == playlist.CacheFileName {
		// Cache writes must not invalidate the cache they just created.
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}

	dir := filepath.Dir(event.Name)
	if err := playlist.InvalidateCache(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Failed to invalidate playlist cache")
	}

	// New directories join the watch set so their future content is seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !playlist.IsHidden(name) {
			if err := w.fsw.Add(event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
		}
	}
}
