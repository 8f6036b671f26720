package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch runs once and then again whenever one of the inputs is written,
// created or replaced, until ctx is done. Parse failures are logged and do
// not stop the watcher. Directories are watched rather than files so that
// editors which save through rename are picked up.
func (a *App) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	watched := make(map[string]bool, len(a.cfg.Inputs))
	dirs := make(map[string]bool)
	for _, in := range a.cfg.Inputs {
		p := filepath.Clean(in)
		watched[p] = true
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
		log.Debug().Str("dir", dir).Msg("watching directory")
	}

	a.runLogged(ctx)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("watcher stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("input changed")
			pending = time.After(a.cfg.WatchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		case <-pending:
			pending = nil
			a.runLogged(ctx)
		}
	}
}

func (a *App) runLogged(ctx context.Context) {
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("reload failed")
	}
}
