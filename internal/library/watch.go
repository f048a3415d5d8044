package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce window between a filesystem event and the rescan it triggers,
// so bulk copies coalesce into one session.
const watchDebounce = 2 * time.Second

// Watch monitors the roots and runs a scan whenever files change, until
// ctx is cancelled. Each triggered scan reports through onProgress if
// non-nil. New directories are picked up between scans.
func (ix *Indexer) Watch(ctx context.Context, roots []string, onProgress func(Progress)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return opErr("watch", ErrIo, err)
	}
	defer watcher.Close()

	addTree := func() {
		for _, root := range roots {
			_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return nil //nolint:nilerr // unwatchable subtrees are skipped
				}
				if d.IsDir() {
					_ = watcher.Add(path)
				}
				return nil
			})
		}
	}
	addTree()

	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.lib.log.Warn("watch error", "error", err)
		case <-trigger:
			progress := make(chan Progress)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if onProgress != nil {
						onProgress(p)
					}
				}
			}()
			if _, err := ix.Scan(roots, progress); err != nil {
				ix.lib.log.Warn("watch scan failed", "error", err)
			}
			<-done
			addTree()
		}
	}
}
