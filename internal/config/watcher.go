package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the file whenever it changes on disk until ctx is done. Bursts of events
// are collapsed into one reload. onReload, when set, runs after each successful reload.
func (s *FileSource) Watch(ctx context.Context, onReload func(File)) error {
	if s.path == "" {
		return errors.New("sso config has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	// Editors replace files on save, so watch the directory rather than the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", s.path)
	}

	reload := make(chan struct{}, 1)
	go s.scheduleReload(ctx, reload, onReload)
	go s.handleWatcher(ctx, watcher, reload)
	return nil
}

func (s *FileSource) handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, reload chan<- struct{}) {
	defer watcher.Close()
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Err(err).Msg("sso config watcher error")
		}
	}
}

func (s *FileSource) scheduleReload(ctx context.Context, reload <-chan struct{}, onReload func(File)) {
	var timer *time.Timer
	var c <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-reload:
			if timer != nil {
				timer.Reset(reloadDebounce)
			} else {
				timer = time.NewTimer(reloadDebounce)
				c = timer.C
			}
		case <-c:
			c = nil
			timer = nil
			if err := s.Reload(); err != nil {
				log.Err(err).Str("path", s.path).Msg("failed to reload sso config")
				continue
			}
			log.Info().Str("path", s.path).Msg("sso config reloaded")
			if onReload != nil {
				onReload(s.Current())
			}
		}
	}
}
