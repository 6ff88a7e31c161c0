package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces the burst of events an editor produces on save.
const debounceDelay = 100 * time.Millisecond

// Watch invalidates the read cache whenever the settings file changes on disk
// and then calls onChange, if set. It blocks until ctx is done.
//
// The parent directory is watched rather than the file itself because editors
// and Update both replace the file by renaming over it.
func (p *Provider) Watch(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(p.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(p.path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		p.Invalidate()
		p.logger.Debug("settings file changed", zap.String("path", p.path))
		if onChange != nil {
			onChange()
		}
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, fire)
			mu.Unlock()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("settings watcher error", zap.Error(err))
		}
	}
}
